package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextLimitsCountCharacters(t *testing.T) {
	accented := strings.Repeat("é", 254)
	assert.Greater(t, len(accented), 254)

	fe := fieldErrors{}
	requireText(fe, "name", accented, 254)
	assert.Empty(t, fe, "254 characters fit VARCHAR(254)")

	requireText(fe, "name", accented+"é", 254)
	assert.Equal(t, "Ensure this field has no more than 254 characters.", fe["name"])

	fe = fieldErrors{}
	checkURL(fe, "git_url", "https://git.example/"+strings.Repeat("ü", 180), false)
	assert.Empty(t, fe)

	checkURL(fe, "testing_url", "https://git.example/"+strings.Repeat("ü", 181), true)
	assert.Equal(t, "Ensure this field has no more than 200 characters.", fe["testing_url"])
}
