package app

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSHeadersNeverPairWildcardWithCredentials(t *testing.T) {
	wildcard := http.Header{}
	setCORSHeaders(wildcard, "*")
	assert.Equal(t, "*", wildcard.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, wildcard.Get("Access-Control-Allow-Credentials"))

	named := http.Header{}
	setCORSHeaders(named, "https://journal.example.org")
	assert.Equal(t, "https://journal.example.org", named.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", named.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", named.Get("Vary"))
}
