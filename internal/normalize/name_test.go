package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", Name(""))
	assert.Equal(t, "", Name("  "))
}

func TestName_Lowercase(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "bertolt brecht", Name("Bertolt Brecht"))
	assert.Equal(t, "bertolt brecht", Name("BERTOLT  BRECHT"))
}

func TestName_FoldsAccents(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "jose saramago", Name("José Saramago"))
	assert.Equal(t, "anton tsjekhov", Name("Anton Tsjékhov"))
}

func TestName_KeepsNorwegianLetters(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "bjørnstjerne bjørnson", Name("Bjørnstjerne Bjørnson"))
	assert.Equal(t, "åse kleveland", Name("Åse Kleveland"))
	assert.Equal(t, "ærlig æsop", Name("Ærlig Æsop"))
}

func TestName_InvertsSortName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "henrik ibsen", Name("Ibsen, Henrik"))
	assert.Equal(t, "henrik ibsen", Name("Henrik Ibsen"))
}

func TestName_StripsPunctuation(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "j b priestley", Name("J.B. Priestley"))
	assert.Equal(t, "eugene oneill", Name("Eugene O'Neill"))
}

func TestName_Idempotent(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"Ibsen, Henrik", "José Saramago", "J.B. Priestley", "Åse Kleveland", "a, b, c"} {
		once := Name(in)
		assert.Equal(t, once, Name(once), "input %q", in)
	}
}
