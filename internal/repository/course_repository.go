package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// order 是保留字，交给方言加引号
var orderColumn = clause.OrderByColumn{Column: clause.Column{Name: "order"}}

// CourseRepository 课程、章节、课时
type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) CreateCourse(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) CreateModule(module *model.Module) error {
	return r.DB.Create(module).Error
}

func (r *CourseRepository) CreateLesson(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *CourseRepository) FindCourse(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) FindModule(id uint) (*model.Module, error) {
	var module model.Module
	err := r.DB.First(&module, id).Error
	return &module, err
}

func (r *CourseRepository) FindLesson(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.First(&lesson, id).Error
	return &lesson, err
}

// ListModules 按 order 升序，order 相同按 id
func (r *CourseRepository) ListModules(courseID uint) ([]model.Module, error) {
	var modules []model.Module
	err := r.DB.Where("course_id = ?", courseID).
		Order(orderColumn).Order("id ASC").
		Find(&modules).Error
	return modules, err
}

func (r *CourseRepository) ListLessons(moduleID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("module_id = ?", moduleID).
		Order(orderColumn).Order("id ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *CourseRepository) CountLessons(moduleID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).Where("module_id = ?", moduleID).Count(&count).Error
	return count, err
}

// NextModule 返回同课程中排在 module 之后的第一个章节，没有则返回 nil
func (r *CourseRepository) NextModule(module *model.Module) (*model.Module, error) {
	modules, err := r.ListModules(module.CourseID)
	if err != nil {
		return nil, err
	}
	for i := range modules {
		if modules[i].ID == module.ID && i+1 < len(modules) {
			return &modules[i+1], nil
		}
	}
	return nil, nil
}

// PreviousModule 返回排在 module 之前的章节，第一个章节返回 nil
func (r *CourseRepository) PreviousModule(module *model.Module) (*model.Module, error) {
	modules, err := r.ListModules(module.CourseID)
	if err != nil {
		return nil, err
	}
	for i := range modules {
		if modules[i].ID == module.ID && i > 0 {
			return &modules[i-1], nil
		}
	}
	return nil, nil
}

func (r *CourseRepository) UpdateLessonVideo(lessonID uint, url string, duration float64) error {
	return r.DB.Model(&model.Lesson{}).
		Where("id = ?", lessonID).
		Updates(map[string]interface{}{
			"video_url":              url,
			"video_duration_seconds": duration,
		}).Error
}

// ListPublishedCourses 课程目录，分页
func (r *CourseRepository) ListPublishedCourses(page, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64
	q := r.DB.Model(&model.Course{}).Where("is_published = ?", true)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id ASC").Offset((page - 1) * limit).Limit(limit).Find(&courses).Error
	return courses, total, err
}

// FindCourseOutline 课程及其章节、课时，均按 order 排序
func (r *CourseRepository) FindCourseOutline(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order(orderColumn).Order("id ASC")
		}).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order(orderColumn).Order("id ASC")
		}).
		First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) SetCoursePublished(id uint, published bool) error {
	return r.DB.Model(&model.Course{}).Where("id = ?", id).Update("is_published", published).Error
}
