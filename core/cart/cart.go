package cart

import (
	"time"

	"github.com/irsalhamdi/lms/core/course"
	"github.com/shopspring/decimal"
)

type Cart struct {
	UserID    string    `json:"-" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Version   int       `json:"-" db:"version"`
}

type Item struct {
	UserID    string    `json:"-" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type ItemNew struct {
	CourseID string `json:"courseId" validate:"required,uuid"`
}

type SyncNew struct {
	CourseIDs []string `json:"courseIds" validate:"dive,uuid"`
}

// View is the cart as shown to its owner, priced at the current catalog.
type View struct {
	Items []course.Course `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func NewView(cs []course.Course) View {
	total := decimal.Zero
	for _, c := range cs {
		total = total.Add(c.EffectivePrice())
	}

	if cs == nil {
		cs = []course.Course{}
	}
	return View{Items: cs, Total: total}
}

// dedupe keeps the first occurrence of every id.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
