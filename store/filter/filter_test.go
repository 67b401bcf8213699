package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallio/recall-go/store"
)

func TestCompileRejectsBadExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"syntax error", `tone ==`},
		{"unknown field", `mood == "happy"`},
		{"non-bool result", `tone`},
		{"membership on non-tags", `"x" in content`},
		{"field to field comparison", `tone == content`},
		{"unsupported operator", `tone > "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestMatchSemantics(t *testing.T) {
	mem := &store.Memory{
		Content:       "Had coffee with Alex at Blue Bottle",
		Reflection:    "A good morning",
		EmotionalTone: "content",
		Location:      &store.Location{Kind: store.LocationPhysical, Name: "Blue Bottle"},
		Tags:          []string{"coffee", "social"},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`tone == "content"`, true},
		{`tone == "sad"`, false},
		{`tone != "sad"`, true},
		{`"coffee" in tags`, true},
		{`"tea" in tags`, false},
		{`location_kind == "physical"`, true},
		{`location == "Blue Bottle"`, true},
		{`content.contains("Alex")`, true},
		{`content.contains("Sam")`, false},
		{`reflection.contains("morning")`, true},
		{`tone == "content" && "coffee" in tags`, true},
		{`tone == "sad" || "coffee" in tags`, true},
		{`!(tone == "sad")`, true},
		{`"content" == tone`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(mem))
		})
	}
}

func TestMatchWithoutLocation(t *testing.T) {
	f, err := Compile(`location_kind == "physical"`)
	require.NoError(t, err)
	assert.False(t, f.Match(&store.Memory{Content: "no location"}))
}

func TestClauseSQLPerDialect(t *testing.T) {
	f, err := Compile(`tone == "joyful" && "coffee" in tags`)
	require.NoError(t, err)

	pg, err := f.Clause(DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, "(emotional_tone = ? AND ? = ANY(tags))", pg.SQL)
	assert.Equal(t, []any{"joyful", "coffee"}, pg.Args)
	assert.NotNil(t, pg.Match)

	lite, err := f.Clause(DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, "(emotional_tone = ? AND EXISTS (SELECT 1 FROM json_each(memory.tags) WHERE json_each.value = ?))", lite.SQL)
	assert.Equal(t, []any{"joyful", "coffee"}, lite.Args)
}

func TestClauseEscapesLikeWildcards(t *testing.T) {
	f, err := Compile(`content.contains("50%_off")`)
	require.NoError(t, err)

	pg, err := f.Clause(DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, "content LIKE ?", pg.SQL)
	assert.Equal(t, []any{`%50\%\_off%`}, pg.Args)

	lite, err := f.Clause(DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, `content LIKE ? ESCAPE '\'`, lite.SQL)
}

func TestClauseNotEquals(t *testing.T) {
	f, err := Compile(`tone != "sad"`)
	require.NoError(t, err)

	pg, err := f.Clause(DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, "emotional_tone <> ?", pg.SQL)
	assert.Equal(t, []any{"sad"}, pg.Args)
}

func TestSQLAndMatchAgree(t *testing.T) {
	// Both views come from one compiled expression; a memory accepted by
	// Match must be selectable by the SQL fragment's semantics. Spot
	// check the predicate side against a matrix of memories.
	f, err := Compile(`tone == "joyful" && content.contains("run")`)
	require.NoError(t, err)

	memories := []*store.Memory{
		{EmotionalTone: "joyful", Content: "morning run"},
		{EmotionalTone: "joyful", Content: "morning swim"},
		{EmotionalTone: "tired", Content: "morning run"},
	}
	want := []bool{true, false, false}
	for i, mem := range memories {
		assert.Equal(t, want[i], f.Match(mem), "memory %d", i)
	}
}
