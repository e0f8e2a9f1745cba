package bot

import (
	"errors"
	"testing"

	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want PostbackCommand
	}{
		{"full", "menu=2&type=3&number=2", PostbackCommand{Menu: 2, Type: "3", Number: 2}},
		{"default number", "menu=2&type=1", PostbackCommand{Menu: 2, Type: "1", Number: DefaultDiseaseNumber}},
		{"explicit number", "menu=2&type=1&number=7", PostbackCommand{Menu: 2, Type: "1", Number: 7}},
		{"other menu", "menu=1", PostbackCommand{Menu: 1}},
		{"key order", "number=3&type=a&menu=2", PostbackCommand{Menu: 2, Type: "a", Number: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePostback(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePostbackErrors(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		"",
		"type=3&number=2",
		"menu=two&type=3",
		"menu=2&type=3&number=x",
		"menu=2&number=2",
		"menu=2&type=3&extra=1",
		"menu=2&menu=3&type=1",
		"menu=2&type=%zz",
	} {
		t.Run(data, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePostback(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domerrors.ErrDecode), "got %v", err)
		})
	}
}

func TestPostbackCommandEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	cmd := PostbackCommand{Menu: MenuDiseaseLookup, Type: "3", Number: 2}
	assert.Equal(t, "menu=2&number=2&type=3", cmd.Encode())

	got, err := ParsePostback(cmd.Encode())
	require.NoError(t, err)
	assert.Equal(t, cmd, got)
}
