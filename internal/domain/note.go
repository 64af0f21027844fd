package domain

import "time"

type Visibility string

const (
	VisibilityPrivate     Visibility = "PRIVATE"
	VisibilitySharedRead  Visibility = "SHARED_READ"
	VisibilitySharedWrite Visibility = "SHARED_WRITE"
)

// Note is owned by its author. ReadGrants and WriteGrants hold usernames and
// only matter when Visibility is not PRIVATE.
type Note struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Body        string     `json:"body" db:"body"`
	Owner       string     `json:"owner" db:"owner"`
	Visibility  Visibility `json:"visibility" db:"visibility"`
	ReadGrants  []string   `json:"read_grants" db:"-"`
	WriteGrants []string   `json:"write_grants" db:"-"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateNoteRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Body        string     `json:"body"`
	Visibility  Visibility `json:"visibility" validate:"omitempty,oneof=PRIVATE SHARED_READ SHARED_WRITE"`
	ReadGrants  []string   `json:"read_grants" validate:"dive,required"`
	WriteGrants []string   `json:"write_grants" validate:"dive,required"`
}

type UpdatePermissionsRequest struct {
	Visibility  Visibility `json:"visibility" validate:"required,oneof=PRIVATE SHARED_READ SHARED_WRITE"`
	ReadGrants  []string   `json:"read_grants" validate:"dive,required"`
	WriteGrants []string   `json:"write_grants" validate:"dive,required"`
}

type SaveNoteRequest struct {
	Title             string `json:"title" validate:"required,max=255"`
	Body              string `json:"body"`
	ChangeDescription string `json:"change_description" validate:"max=500"`
}

type NoteResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Owner       string     `json:"owner"`
	Visibility  Visibility `json:"visibility"`
	ReadGrants  []string   `json:"read_grants"`
	WriteGrants []string   `json:"write_grants"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (n *Note) ToResponse() *NoteResponse {
	return &NoteResponse{
		ID:          n.ID,
		Title:       n.Title,
		Body:        n.Body,
		Owner:       n.Owner,
		Visibility:  n.Visibility,
		ReadGrants:  n.ReadGrants,
		WriteGrants: n.WriteGrants,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// Clone returns a copy whose grant slices do not alias n.
func (n *Note) Clone() *Note {
	c := *n
	c.ReadGrants = append([]string(nil), n.ReadGrants...)
	c.WriteGrants = append([]string(nil), n.WriteGrants...)
	return &c
}

// Audience lists every username that may read the note: the owner plus,
// for shared notes, all grantees.
func (n *Note) Audience() []string {
	seen := map[string]bool{n.Owner: true}
	users := []string{n.Owner}
	if n.Visibility == VisibilityPrivate {
		return users
	}
	for _, group := range [][]string{n.ReadGrants, n.WriteGrants} {
		for _, u := range group {
			if !seen[u] {
				seen[u] = true
				users = append(users, u)
			}
		}
	}
	return users
}
