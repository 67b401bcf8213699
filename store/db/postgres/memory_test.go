package postgres

import "testing"

func TestTagsValueNeverBindsNull(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{"nil", nil, "{}"},
		{"empty", []string{}, "{}"},
		{"values", []string{"coffee", "social"}, `{"coffee","social"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tagsValue(tt.tags).Value()
			if err != nil {
				t.Fatalf("value: %v", err)
			}
			if v == nil {
				t.Fatal("tags bound as NULL")
			}
			got, ok := v.(string)
			if !ok || got != tt.want {
				t.Fatalf("got %v, want %s", v, tt.want)
			}
		})
	}
}
