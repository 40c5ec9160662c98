package service

import (
	"bytes"
	"context"
	"errors"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateQuiz_Validation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewContentService(db, nil)
	f := createCourse(t, db, 1, 1)
	lessonID := f.lessons[0][0].ID
	moduleID := f.modules[0].ID

	_, err := s.CreateQuiz(ctx, QuizRequest{Title: "No scope"})
	assert.ErrorIs(t, err, util.ErrInvalidQuizScope)
	_, err = s.CreateQuiz(ctx, QuizRequest{Title: "Both", LessonID: &lessonID, ModuleID: &moduleID})
	assert.ErrorIs(t, err, util.ErrInvalidQuizScope)

	missing := uint(9999)
	_, err = s.CreateQuiz(ctx, QuizRequest{Title: "Missing", LessonID: &missing})
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = s.CreateQuiz(ctx, QuizRequest{
		Title:    "Broken",
		ModuleID: &moduleID,
		Questions: []QuestionRequest{
			{Prompt: "ok", Options: []string{"a", "b"}, CorrectOption: 1},
			{Prompt: "bad", Options: []string{"a", "b"}, CorrectOption: 2},
		},
	})
	assert.ErrorIs(t, err, util.ErrInvalidQuestion)

	// 题目校验失败时整个测验回滚
	var quizzes, questions int64
	require.NoError(t, db.Model(&model.Quiz{}).Count(&quizzes).Error)
	require.NoError(t, db.Model(&model.QuizQuestion{}).Count(&questions).Error)
	assert.Zero(t, quizzes)
	assert.Zero(t, questions)

	quiz, err := s.CreateQuiz(ctx, QuizRequest{
		Title:    "Final",
		ModuleID: &moduleID,
		Questions: []QuestionRequest{
			{Prompt: "one", Options: []string{"a", "b"}, CorrectOption: 1},
			{Prompt: "two", Options: []string{"a", "b", "c"}, CorrectOption: 2, Points: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, 1, quiz.Questions[0].Points)
	assert.Equal(t, 3, quiz.Questions[1].Points)
	assert.Equal(t, 2, quiz.Questions[1].Order)
	assert.False(t, quiz.IsPublished)

	require.NoError(t, s.PublishQuiz(ctx, quiz.ID, true))
	assert.ErrorIs(t, s.PublishQuiz(ctx, 9999, true), util.ErrNotFound)
}

func TestCourseAuthoringAndOutline(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewContentService(db, nil)

	course, err := s.CreateCourse(ctx, CourseRequest{Title: "  Distributed Systems  "})
	require.NoError(t, err)
	assert.Equal(t, "Distributed Systems", course.Title)

	second, err := s.CreateModule(ctx, course.ID, ModuleRequest{Title: "Consensus", Order: 2})
	require.NoError(t, err)
	first, err := s.CreateModule(ctx, course.ID, ModuleRequest{Title: "Clocks", Order: 1, MaxAttempts: 5})
	require.NoError(t, err)
	_, err = s.CreateLesson(ctx, first.ID, LessonRequest{Title: "Vector clocks", Order: 2})
	require.NoError(t, err)
	_, err = s.CreateLesson(ctx, first.ID, LessonRequest{Title: "Lamport clocks", Order: 1})
	require.NoError(t, err)
	_, err = s.CreateLesson(ctx, second.ID, LessonRequest{Title: "Raft", Order: 1})
	require.NoError(t, err)

	_, err = s.CreateModule(ctx, 9999, ModuleRequest{Title: "Orphan"})
	assert.ErrorIs(t, err, util.ErrNotFound)
	_, err = s.CreateLesson(ctx, 9999, LessonRequest{Title: "Orphan"})
	assert.ErrorIs(t, err, util.ErrNotFound)

	// 草稿只对教师可见
	_, err = s.GetCourseOutline(ctx, course.ID, false)
	assert.ErrorIs(t, err, util.ErrNotFound)
	outline, err := s.GetCourseOutline(ctx, course.ID, true)
	require.NoError(t, err)
	require.Len(t, outline.Modules, 2)
	assert.Equal(t, "Clocks", outline.Modules[0].Title)
	assert.Equal(t, 5, outline.Modules[0].MaxAttempts)
	require.Len(t, outline.Modules[0].Lessons, 2)
	assert.Equal(t, "Lamport clocks", outline.Modules[0].Lessons[0].Title)

	list, err := s.ListCourses(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, list.Total)

	require.NoError(t, s.PublishCourse(ctx, course.ID, true))
	list, err = s.ListCourses(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Courses, 1)
	assert.Equal(t, course.ID, list.Courses[0].ID)

	_, err = s.GetCourseOutline(ctx, course.ID, false)
	assert.NoError(t, err)
	assert.ErrorIs(t, s.PublishCourse(ctx, 9999, true), util.ErrNotFound)
}

func TestCreateAssignment(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewContentService(db, nil)
	f := createCourse(t, db, 1, 1)

	a, err := s.CreateAssignment(ctx, AssignmentRequest{ModuleID: f.modules[0].ID, Title: "Module project", PointsPossible: 50})
	require.NoError(t, err)
	assert.Nil(t, a.LessonID)
	assert.Equal(t, 50.0, a.PointsPossible)

	_, err = s.CreateAssignment(ctx, AssignmentRequest{Title: "Nowhere"})
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestAttachLessonVideo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	root := t.TempDir()
	s := NewContentService(db, NewStorageService(&config.StorageConfig{Type: util.StorageLocal, LocalPath: root}))
	var probed string
	s.Prober = func(source string) (*util.VideoInfo, error) {
		probed = source
		return &util.VideoInfo{Duration: 42}, nil
	}
	f := createCourse(t, db, 1, 1)
	lessonID := f.lessons[0][0].ID

	mp4 := []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
	lesson, err := s.AttachLessonVideo(ctx, lessonID, &FileUpload{
		Filename: "intro.MP4",
		Size:     int64(len(mp4)),
		Reader:   bytes.NewReader(mp4),
	})
	require.NoError(t, err)
	assert.Equal(t, 42.0, lesson.VideoDurationSeconds)
	assert.True(t, strings.HasPrefix(lesson.VideoURL, "/uploads/lessons/"))
	assert.True(t, strings.HasPrefix(probed, root))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(lesson.VideoURL, "/uploads/"))))
	assert.NoError(t, err)

	var stored model.Lesson
	require.NoError(t, db.First(&stored, lessonID).Error)
	assert.Equal(t, lesson.VideoURL, stored.VideoURL)
	assert.Equal(t, 42.0, stored.VideoDurationSeconds)

	_, err = s.AttachLessonVideo(ctx, lessonID, &FileUpload{
		Filename: "notes.pdf",
		Size:     8,
		Reader:   bytes.NewReader([]byte("%PDF-1.4")),
	})
	assert.ErrorIs(t, err, util.ErrInvalidFileType)

	// 探测失败时仍保存视频，时长为 0
	s.Prober = func(string) (*util.VideoInfo, error) { return nil, errors.New("ffprobe not found") }
	lesson, err = s.AttachLessonVideo(ctx, lessonID, &FileUpload{
		Filename: "retake.mp4",
		Size:     int64(len(mp4)),
		Reader:   bytes.NewReader(mp4),
	})
	require.NoError(t, err)
	assert.Zero(t, lesson.VideoDurationSeconds)
}
