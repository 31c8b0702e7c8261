package models

import "time"

// BaseModel carries the columns shared by every persisted entity.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginationQuery struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

type PaginationResult struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

// Normalize clamps the page size and falls back to the first page when the
// requested page is not a positive number or lies past the last page.
func (q PaginationQuery) Normalize(total int64) PaginationQuery {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	pages := PageCount(total, q.PageSize)
	if q.Page <= 0 || q.Page > pages {
		q.Page = 1
	}
	return q
}

func (q PaginationQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

func (q PaginationQuery) Result(total int64) PaginationResult {
	return PaginationResult{
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		Pages:    PageCount(total, q.PageSize),
	}
}

// PageCount never returns less than one so an empty listing still has a page.
func PageCount(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
