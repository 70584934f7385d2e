package i18n

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestCatalogTranslatesEnglish(t *testing.T) {
	catalog, err := New("en", nil)
	require.NoError(t, err)

	require.Equal(t, language.English, catalog.Language())
	require.Equal(t, "Interview", catalog.T("title"))
	require.Equal(t, "Question 2 of 5", catalog.Td("question_header", map[string]any{"Index": 2, "Count": 5}))
	require.Equal(t, "1 answer failed to upload", catalog.Tp("uploads_failed", 1))
	require.Equal(t, "3 answers failed to upload", catalog.Tp("uploads_failed", 3))
}

func TestCatalogTranslatesSpanish(t *testing.T) {
	catalog, err := New("es-MX", nil)
	require.NoError(t, err)

	require.Equal(t, language.Spanish, catalog.Language())
	require.Equal(t, "Entrevista", catalog.T("title"))
	require.Equal(t, "La grabación empieza en 7s", catalog.Td("countdown", map[string]any{"Seconds": 7}))
}

func TestCatalogFallsBackForUnknownLanguageAndID(t *testing.T) {
	catalog, err := New("tlh", nil)
	require.NoError(t, err)

	require.Equal(t, language.English, catalog.Language())
	require.Equal(t, "Interview", catalog.T("title"))
	require.Equal(t, "no_such_message", catalog.T("no_such_message"))
}

func TestLocalesDefineTheSameMessages(t *testing.T) {
	load := func(name string) map[string]json.RawMessage {
		data, err := localeFS.ReadFile("locales/" + name)
		require.NoError(t, err)
		var out map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	}

	en := load("en.json")
	es := load("es.json")
	require.Len(t, es, len(en))
	for id := range en {
		require.Contains(t, es, id)
	}
}
