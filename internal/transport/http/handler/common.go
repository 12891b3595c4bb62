package handler

import (
	"github.com/gin-gonic/gin"

	"webinfinitygen/internal/app"
)

// paginationView renders p with its item count under totalKey, e.g.
// total_chats or total_users.
func paginationView(p app.Pagination, totalKey string) gin.H {
	return gin.H{
		"current_page": p.CurrentPage,
		"total_pages":  p.TotalPages,
		totalKey:       p.TotalItems,
		"per_page":     p.PerPage,
	}
}
