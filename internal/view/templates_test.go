package view

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrak-digital/gotrak/internal/shared"
)

func TestRenderLoginPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	data := TemplateData{
		Title:     "Masuk",
		CSRFToken: "token-abc",
		Flash:     &shared.FlashMessage{Kind: "success", Message: "Registrasi berhasil! Silakan login."},
		Data: struct {
			Email, Username string
			Errors          map[string]string
		}{},
	}
	require.NoError(t, engine.Render(rr, "pages/login.html", data))

	body := rr.Body.String()
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<title>Masuk · GOTRAK</title>")
	assert.Contains(t, body, `name="csrf_token" value="token-abc"`)
	assert.Contains(t, body, "Registrasi berhasil! Silakan login.")
	assert.Contains(t, body, `action="/login"`)
}

func TestRenderEscapesUserInput(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	data := TemplateData{
		Title: "Masuk",
		Data: struct {
			Email, Username string
			Errors          map[string]string
		}{Email: `"><script>alert(1)</script>`},
	}
	require.NoError(t, engine.Render(rr, "pages/login.html", data))

	body := rr.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}
