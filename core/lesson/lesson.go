package lesson

import (
	"encoding/json"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

const (
	LayoutSingle     = "single"
	LayoutTwoColumn  = "two_column"
	LayoutVideoFocus = "video_focus"
)

type Section struct {
	ID        string    `json:"id" db:"section_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	Index     int       `json:"index" db:"index"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type SectionNew struct {
	Index int    `json:"index" validate:"gte=0"`
	Title string `json:"title" validate:"required"`
}

type Lesson struct {
	ID                 string    `json:"id" db:"lesson_id"`
	CourseID           string    `json:"courseId" db:"course_id"`
	SectionID          *string   `json:"sectionId" db:"section_id"`
	Index              int       `json:"index" db:"index"`
	Title              string    `json:"title" db:"title"`
	PublishedVersionID *string   `json:"publishedVersionId" db:"published_version_id"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}

// Published reports whether the lesson counts toward course progress.
func (l Lesson) Published() bool {
	return l.PublishedVersionID != nil
}

type LessonNew struct {
	SectionID *string `json:"sectionId" validate:"omitempty,uuid"`
	Index     int     `json:"index" validate:"gte=0"`
	Title     string  `json:"title" validate:"required"`
}

type Version struct {
	ID          string     `json:"id" db:"version_id"`
	LessonID    string     `json:"lessonId" db:"lesson_id"`
	Number      int        `json:"number" db:"number"`
	Status      string     `json:"status" db:"status"`
	Layout      string     `json:"layout" db:"layout"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	PublishedAt *time.Time `json:"publishedAt" db:"published_at"`
	Blocks      []Block    `json:"blocks" db:"-"`
}

type Block struct {
	ID        string          `json:"id" db:"block_id"`
	VersionID string          `json:"-" db:"version_id"`
	Index     int             `json:"index" db:"index"`
	Kind      string          `json:"kind" db:"kind"`
	Content   json.RawMessage `json:"content" db:"content"`
}

type BlockNew struct {
	Kind    string          `json:"kind" validate:"required,oneof=text video quiz file"`
	Content json.RawMessage `json:"content" validate:"required"`
}

type DraftNew struct {
	Layout string     `json:"layout" validate:"required,oneof=single two_column video_focus"`
	Blocks []BlockNew `json:"blocks" validate:"dive"`
}

// Content is a lesson together with the version a reader sees.
type Content struct {
	Lesson  Lesson  `json:"lesson"`
	Version Version `json:"version"`
}

// Outline lists the sections of a course and its published lessons.
type Outline struct {
	Sections []Section `json:"sections"`
	Lessons  []Lesson  `json:"lessons"`
}
