package pagination

import (
	"net/http/httptest"
	"testing"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", DefaultPage, DefaultLimit},
		{"explicit", "?page=3&limit=15", 3, 15},
		{"limit capped", "?limit=500", DefaultPage, MaxLimit},
		{"garbage", "?page=abc&limit=-2", DefaultPage, DefaultLimit},
		{"zero page", "?page=0", DefaultPage, DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/patients"+tt.query, nil)
			p := ParseParams(r)
			if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
				t.Errorf("got page=%d limit=%d, want page=%d limit=%d", p.Page, p.Limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, Limit: 20}
	if got := p.Offset(); got != 40 {
		t.Errorf("Offset() = %d, want 40", got)
	}
}

func TestMeta(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	m := p.Meta(25)

	if m.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", m.TotalPages)
	}
	if !m.HasNext || !m.HasPrevious {
		t.Errorf("expected both next and previous, got %+v", m)
	}

	empty := Params{Page: 1, Limit: 10}.Meta(0)
	if empty.TotalPages != 1 || empty.HasNext {
		t.Errorf("empty result meta = %+v", empty)
	}
}
