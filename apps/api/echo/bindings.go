package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/money"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the comma-separated `ordering` query param; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	TotalDueResponse struct {
		MajorID  string      `json:"major_id"`
		TotalDue money.Money `json:"total_due"`
	}

	OutstandingResponse struct {
		StudentID   string      `json:"student_id"`
		MajorID     string      `json:"major_id"`
		Outstanding money.Money `json:"outstanding"`
	}

	EnrollmentResponse struct {
		Enrollment ledger.Enrollment `json:"enrollment"`
		Payment    ledger.Payment    `json:"payment"`
	}
)

// orEmpty makes nil slices render as `[]`.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
