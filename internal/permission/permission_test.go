package permission

import (
	"testing"

	"collabnotes-server/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCanReadCanWrite(t *testing.T) {
	tests := []struct {
		name       string
		visibility domain.Visibility
		user       string
		wantRead   bool
		wantWrite  bool
	}{
		{"owner private", domain.VisibilityPrivate, "owner", true, true},
		{"reader private", domain.VisibilityPrivate, "reader", false, false},
		{"writer private", domain.VisibilityPrivate, "writer", false, false},
		{"stranger private", domain.VisibilityPrivate, "stranger", false, false},
		{"owner shared read", domain.VisibilitySharedRead, "owner", true, true},
		{"reader shared read", domain.VisibilitySharedRead, "reader", true, false},
		{"writer shared read", domain.VisibilitySharedRead, "writer", true, false},
		{"stranger shared read", domain.VisibilitySharedRead, "stranger", false, false},
		{"owner shared write", domain.VisibilitySharedWrite, "owner", true, true},
		{"reader shared write", domain.VisibilitySharedWrite, "reader", true, false},
		{"writer shared write", domain.VisibilitySharedWrite, "writer", true, true},
		{"stranger shared write", domain.VisibilitySharedWrite, "stranger", false, false},
		{"empty user", domain.VisibilitySharedWrite, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := &domain.Note{
				ID:          "n1",
				Owner:       "owner",
				Visibility:  tt.visibility,
				ReadGrants:  []string{"reader"},
				WriteGrants: []string{"writer"},
			}
			assert.Equal(t, tt.wantRead, CanRead(note, tt.user), "CanRead")
			assert.Equal(t, tt.wantWrite, CanWrite(note, tt.user), "CanWrite")
		})
	}
}

func TestWriteImpliesRead(t *testing.T) {
	for _, v := range []domain.Visibility{domain.VisibilityPrivate, domain.VisibilitySharedRead, domain.VisibilitySharedWrite} {
		note := &domain.Note{Owner: "o", Visibility: v, ReadGrants: []string{"a"}, WriteGrants: []string{"b", "c"}}
		for _, u := range []string{"o", "a", "b", "c", "z"} {
			if CanWrite(note, u) {
				assert.True(t, CanRead(note, u), "visibility=%s user=%s", v, u)
			}
		}
	}
}

func TestNilNote(t *testing.T) {
	assert.False(t, CanRead(nil, "owner"))
	assert.False(t, CanWrite(nil, "owner"))
}
