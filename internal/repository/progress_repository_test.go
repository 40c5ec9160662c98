package repository

import (
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/database"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestGetOrCreateLessonCompletion_Idempotent(t *testing.T) {
	db := newTestDB(t)
	r := NewProgressRepository(db)

	first, err := r.GetOrCreateLessonCompletion(1, 10, 100)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := r.GetOrCreateLessonCompletion(1, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.LessonCompletion{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSaveLessonCompletion_VersionConflict(t *testing.T) {
	db := newTestDB(t)
	r := NewProgressRepository(db)

	lc, err := r.GetOrCreateLessonCompletion(1, 10, 100)
	require.NoError(t, err)
	stale, err := r.FindLessonCompletion(1, 10)
	require.NoError(t, err)

	lc.ReadingProgress = 80
	require.NoError(t, r.SaveLessonCompletion(lc))
	assert.Equal(t, 1, lc.Version)

	stale.ReadingProgress = 20
	err = r.SaveLessonCompletion(stale)
	assert.ErrorIs(t, err, util.ErrConcurrentUpdate)
	assert.Equal(t, 0, stale.Version)

	got, err := r.FindLessonCompletion(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.ReadingProgress)
	assert.Equal(t, 1, got.Version)
}

func TestModuleProgress_CreateAndSave(t *testing.T) {
	db := newTestDB(t)
	r := NewProgressRepository(db)

	p, err := r.CreateModuleProgress(&model.ModuleProgress{StudentID: 1, ModuleID: 2, EnrollmentID: 3, Status: model.ModuleUnlocked})
	require.NoError(t, err)
	dup, err := r.CreateModuleProgress(&model.ModuleProgress{StudentID: 1, ModuleID: 2, EnrollmentID: 3, Status: model.ModuleLocked})
	require.NoError(t, err)
	assert.Equal(t, p.ID, dup.ID)
	assert.Equal(t, model.ModuleUnlocked, dup.Status)

	stale := *dup
	p.Status = model.ModuleInProgress
	p.AttemptsCount = 1
	require.NoError(t, r.SaveModuleProgress(p))

	stale.Status = model.ModuleFailed
	assert.ErrorIs(t, r.SaveModuleProgress(&stale), util.ErrConcurrentUpdate)

	got, err := r.FindModuleProgress(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleInProgress, got.Status)
	assert.Equal(t, 1, got.AttemptsCount)

	missing, err := r.FindModuleProgress(1, 2, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := r.ListModuleProgressByEnrollment(3)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteLessonCompletionsForModule(t *testing.T) {
	db := newTestDB(t)
	r := NewProgressRepository(db)

	for lessonID := uint(1); lessonID <= 3; lessonID++ {
		_, err := r.GetOrCreateLessonCompletion(7, lessonID, 100)
		require.NoError(t, err)
	}
	_, err := r.GetOrCreateLessonCompletion(7, 4, 200)
	require.NoError(t, err)

	n, err := r.DeleteLessonCompletionsForModule(7, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := r.CountLessonCompletionsByModule(7, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)
}
