package paginate

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 10
	MaxLimit     = 1000
	DefaultPage  = 1
)

var (
	ErrInvalidLimit = errors.New("limit must be between 1 and 1000")
	ErrInvalidOrder = errors.New("order_by is not a sortable column")
	ErrPageNotFound = errors.New("page is past the last page")
)

type ctxKeyPagination struct{}

type Pagination struct {
	Limit      int  `json:"limit"`
	Page       int  `json:"page"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	NextPage   int  `json:"next_page,omitempty"`
	PrevPage   int  `json:"prev_page,omitempty"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

type PaginatedResponse[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Options struct {
	Page    int
	Limit   int
	OrderBy string
}

// NewPagination describes page of totalItems. Out-of-range page and limit
// fall back to the defaults, and an empty result still has one page.
func NewPagination(page, limit, totalItems int) *Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}
	p := &Pagination{
		Limit:      limit,
		Page:       page,
		TotalItems: totalItems,
		TotalPages: max(CalculateTotalPages(totalItems, limit), 1),
	}
	if p.HasNext = page < p.TotalPages; p.HasNext {
		p.NextPage = page + 1
	}
	if p.HasPrev = page > 1; p.HasPrev {
		p.PrevPage = page - 1
	}
	return p
}

func NewPaginatedResponse[T any](data []T, p *Pagination) *PaginatedResponse[T] {
	return &PaginatedResponse[T]{
		Data:       data,
		Pagination: p,
	}
}

func GetOffset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	return (page - 1) * limit
}

func ValidateOptions(page, limit int) (int, int, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 || limit > MaxLimit {
		return 0, 0, ErrInvalidLimit
	}
	return page, limit, nil
}

// ValidateOrder accepts "column" or "column asc|desc" where column is one of
// sortable, and returns it normalised. An empty order is valid.
func ValidateOrder(orderBy string, sortable ...string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "", nil
	}
	parts := strings.Fields(strings.ToLower(orderBy))
	if len(parts) > 2 {
		return "", ErrInvalidOrder
	}
	if len(parts) == 2 && parts[1] != "asc" && parts[1] != "desc" {
		return "", ErrInvalidOrder
	}
	for _, col := range sortable {
		if parts[0] == col {
			return strings.Join(parts, " "), nil
		}
	}
	return "", ErrInvalidOrder
}

// GinPagination reads page, limit and order_by from the query string. When
// sortable is empty any order_by is rejected.
func GinPagination(sortable ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

		page, limit, err := ValidateOptions(page, limit)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		orderBy, err := ValidateOrder(c.Query("order_by"), sortable...)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		opts := &Options{
			Page:    page,
			Limit:   limit,
			OrderBy: orderBy,
		}

		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), opts))
		c.Next()
	}
}

func NewContext(ctx context.Context, opts *Options) context.Context {
	return context.WithValue(ctx, ctxKeyPagination{}, opts)
}

func FromContext(ctx context.Context) (page, limit int, orderBy string) {
	if p, ok := ctx.Value(ctxKeyPagination{}).(*Options); ok && p != nil {
		return p.Page, p.Limit, p.OrderBy
	}
	return DefaultPage, DefaultLimit, ""
}

// ApplyGormPaginationFromContext applies offset, limit and order. The order
// must already have passed ValidateOrder; defaultOrder is used when it is empty.
func ApplyGormPaginationFromContext(ctx context.Context, db *gorm.DB, defaultOrder string) *gorm.DB {
	page, limit, orderBy := FromContext(ctx)
	if limit == 0 {
		limit = DefaultLimit
	}
	if page == 0 {
		page = DefaultPage
	}
	db = db.Offset(GetOffset(page, limit)).Limit(limit)
	if orderBy == "" {
		orderBy = defaultOrder
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	return db
}

func CalculateTotalPages(totalItems, itemsPerPage int) int {
	if itemsPerPage <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalItems) / float64(itemsPerPage)))
}

func IsValidPage(page, totalPages int) bool {
	return page >= 1 && (totalPages == 0 || page <= totalPages)
}

// CheckPage returns ErrPageNotFound when page lies past the last page of
// totalItems. Any page of an empty result is allowed.
func CheckPage(page, limit, totalItems int) error {
	if !IsValidPage(page, CalculateTotalPages(totalItems, limit)) {
		return ErrPageNotFound
	}
	return nil
}
