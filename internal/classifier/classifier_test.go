package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

type fakeWorkStore struct {
	works map[string]piracy.Work
	err   error
}

func (f *fakeWorkStore) GetWork(_ context.Context, id string) (piracy.Work, error) {
	if f.err != nil {
		return piracy.Work{}, f.err
	}
	w, ok := f.works[id]
	if !ok {
		return piracy.Work{}, piracy.ErrNotFound
	}
	return w, nil
}

func (f *fakeWorkStore) GetTenant(context.Context, string) (piracy.Tenant, error) {
	return piracy.Tenant{}, piracy.ErrNotFound
}

func newStore(works ...piracy.Work) *fakeWorkStore {
	s := &fakeWorkStore{works: map[string]piracy.Work{}}
	for _, w := range works {
		s.works[w.ID] = w
	}
	return s
}

func TestClassifyHighConfidenceMirror(t *testing.T) {
	t.Parallel()

	store := newStore(piracy.Work{ID: "w1", Title: "Título A", ISBN: "978-1-234"})
	c := New(store)

	res, err := c.Classify(context.Background(), "w1",
		"https://libgen.example/download/titulo-a.pdf",
		"Baixe agora. ISBN 9781234 completo.",
		"Título A - PDF")
	require.NoError(t, err)
	require.InDelta(t, 0.75, res.Score, 1e-9)
	require.Equal(t, piracy.ConfidenceHigh, res.Confidence)
	require.Equal(t, []string{
		"Suspicious domain: libgen.example",
		"URL contains suspicious patterns",
		"Title match: 100%",
		"ISBN match: 978-1-234",
	}, res.Reasons)
}

func TestClassifyBareHostIsMedium(t *testing.T) {
	t.Parallel()

	c := New(newStore(piracy.Work{ID: "w1", Title: "Título A", ISBN: "978-1-234"}))
	res, err := c.Classify(context.Background(), "w1", "https://libgen.example/x", "isbn 978 1234", "Título A")
	require.NoError(t, err)
	require.InDelta(t, 0.65, res.Score, 1e-9)
	require.Equal(t, piracy.ConfidenceMedium, res.Confidence)
}

func TestClassifyWorkNotFound(t *testing.T) {
	t.Parallel()

	c := New(newStore())
	res, err := c.Classify(context.Background(), "missing", "https://example.com", "", "")
	require.NoError(t, err)
	require.Zero(t, res.Score)
	require.Equal(t, piracy.ConfidenceLow, res.Confidence)
	require.Equal(t, []string{"Work not found"}, res.Reasons)
}

func TestClassifyStoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	c := New(&fakeWorkStore{err: boom})
	_, err := c.Classify(context.Background(), "w1", "https://example.com", "", "")
	require.ErrorIs(t, err, boom)
}

func TestScoreSignals(t *testing.T) {
	t.Parallel()

	c := New(nil)
	work := piracy.Work{
		Title:    "O Guia Completo",
		Author:   "Maria Silva",
		Keywords: []string{"guia", "capitulo", "ausente", "completo"},
	}

	tests := []struct {
		name   string
		url    string
		text   string
		title  string
		reason string
	}{
		{"author full name", "https://example.com/a", "escrito por Maria Silva", "outro", "Author found in content"},
		{"author last name", "https://example.com/a", "obra de silva", "outro", "Author found in content"},
		{"title in text", "https://example.com/a", "leia o guia completo aqui", "outro", "Title match: 80%"},
		{"keywords", "https://example.com/a", "guia capitulo completo", "outro", "Keywords matched: 75%"},
		{"url pattern", "https://example.com/livro-gratis", "", "outro", "URL contains suspicious patterns"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := c.Score(work, tc.url, tc.text, tc.title)
			require.Contains(t, res.Reasons, tc.reason)
			require.GreaterOrEqual(t, res.Score, 0.0)
			require.LessOrEqual(t, res.Score, 1.0)
		})
	}
}

func TestScoreAddingSignalNeverLowers(t *testing.T) {
	t.Parallel()

	c := New(nil)
	work := piracy.Work{Title: "Livro X", Author: "Ana Costa", ISBN: "123-45"}
	base := c.Score(work, "https://example.com/", "texto", "nada")
	withAuthor := c.Score(work, "https://example.com/", "texto de Ana Costa", "nada")
	withISBN := c.Score(work, "https://example.com/", "texto de Ana Costa 12345", "nada")

	require.GreaterOrEqual(t, withAuthor.Score, base.Score)
	require.GreaterOrEqual(t, withISBN.Score, withAuthor.Score)
}

func TestScoreCappedAtOne(t *testing.T) {
	t.Parallel()

	c := New(nil)
	work := piracy.Work{Title: "Alpha", Author: "Bob Ray", ISBN: "1", Keywords: []string{"alpha"}}
	res := c.Score(work, "https://libgen.example/free-download-pdf-pirata", "alpha bob ray 1", "Alpha")
	require.InDelta(t, 1.0, res.Score, 1e-9)
	require.Equal(t, piracy.ConfidenceHigh, res.Confidence)
}

func TestTitleMatchJaccardGate(t *testing.T) {
	t.Parallel()

	// {a, b, c} vs {a, b, d}: 2/4 = 0.5, not above the gate.
	require.InDelta(t, 0.5, TitleMatch("a b c", "a b d", ""), 1e-9)
	res := New(nil).Score(piracy.Work{Title: "a b c"}, "https://example.com", "", "a b d")
	require.Zero(t, res.Score)

	require.Zero(t, TitleMatch("", "anything", "anything"))
	require.Zero(t, TitleMatch("   ", "", ""))
}

func TestISBNPresentIgnoresSeparators(t *testing.T) {
	t.Parallel()

	require.True(t, ISBNPresent("978-85-333-0227-3", "isbn 978 85 333 0227 3"))
	require.True(t, ISBNPresent("9788533302273", "ISBN: 978-85-333-0227-3"))
	require.False(t, ISBNPresent("978-0", "nothing here"))
	require.False(t, ISBNPresent(" - ", "anything"))
}

func TestUnparsableURLHasNoDomainSignal(t *testing.T) {
	t.Parallel()

	res := New(nil).Score(piracy.Work{Title: "zzz"}, "://libgen\x7f", "", "")
	require.NotContains(t, res.Reasons, "Suspicious domain: libgen")
}

func TestWithExtraDomains(t *testing.T) {
	t.Parallel()

	c := New(nil, WithExtraDomains(" Mirror-Books ", ""))
	res := c.Score(piracy.Work{Title: "zzz"}, "https://mirror-books.net/x", "", "")
	require.Equal(t, []string{"Suspicious domain: mirror-books.net"}, res.Reasons)
}

func TestBucket(t *testing.T) {
	t.Parallel()

	require.Equal(t, piracy.ConfidenceHigh, Bucket(0.7))
	require.Equal(t, piracy.ConfidenceMedium, Bucket(0.4))
	require.Equal(t, piracy.ConfidenceMedium, Bucket(0.69))
	require.Equal(t, piracy.ConfidenceLow, Bucket(0.39))
}
