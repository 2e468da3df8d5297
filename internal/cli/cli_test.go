package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jacentio/shelf/catalog"
	"github.com/jacentio/shelf/catalog/memstore"
)

func newTestOptions(t *testing.T) (*RootOptions, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return &RootOptions{
		Open:   func(context.Context) (catalog.Store, error) { return store, nil },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, store
}

func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustExecute(t *testing.T, opts *RootOptions, args ...string) string {
	t.Helper()
	out, err := execute(t, opts, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func expectExit(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with exit code %d", code)
	}
	if got := GetExitCode(err); got != code {
		t.Errorf("expected exit code %d, got %d (%v)", code, got, err)
	}
}

func expectContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("expected %q in output:\n%s", w, out)
		}
	}
}

type seedResponse struct {
	Status string `json:"status"`
	Data   struct {
		Counts map[catalog.Stage]catalog.Counts `json:"counts"`
	} `json:"data"`
	Error *CLIError `json:"error"`
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

func seedDefault(t *testing.T, opts *RootOptions) {
	t.Helper()
	mustExecute(t, opts, "seed")
}

func TestRootCommand(t *testing.T) {
	opts, _ := newTestOptions(t)
	cmd := NewRootCommand(opts)
	if cmd == nil {
		t.Fatal("expected non-nil root command")
	}
	if cmd.Use != "shelf" {
		t.Errorf("expected Use 'shelf', got %q", cmd.Use)
	}
}

func TestCommandPresence(t *testing.T) {
	opts, _ := newTestOptions(t)
	cmd := NewRootCommand(opts)

	for _, name := range []string{"seed", "genre", "list", "show", "can-delete", "delete", "tables"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			if err != nil {
				t.Fatalf("Find(%s) failed: %v", name, err)
			}
			if sub.Name() != name {
				t.Errorf("expected command %q, got %q", name, sub.Name())
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	opts, _ := newTestOptions(t)
	cmd := NewRootCommand(opts)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	if verbose == nil {
		t.Fatal("expected --verbose flag")
	}
	if verbose.Shorthand != "v" {
		t.Errorf("expected shorthand 'v', got %q", verbose.Shorthand)
	}

	format := cmd.PersistentFlags().Lookup("format")
	if format == nil {
		t.Fatal("expected --format flag")
	}
	if format.DefValue != "text" {
		t.Errorf("expected default format 'text', got %q", format.DefValue)
	}
}

func TestInvalidFormat(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, opts, "--format", "yaml", "seed")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("expected invalid format error, got %v", err)
	}
}

func TestSeed_DefaultDatasetJSON(t *testing.T) {
	opts, _ := newTestOptions(t)

	resp := decode[seedResponse](t, mustExecute(t, opts, "--format", "json", "seed"))

	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	want := map[catalog.Stage]catalog.Counts{
		catalog.StageGenres:    {Created: 3},
		catalog.StageAuthors:   {Created: 1},
		catalog.StageBooks:     {Created: 2},
		catalog.StageInstances: {Created: 1},
	}
	for stage, counts := range want {
		if got := resp.Data.Counts[stage]; got != counts {
			t.Errorf("%s: expected %+v, got %+v", stage, counts, got)
		}
	}
}

func TestSeed_TwiceReusesGenres(t *testing.T) {
	opts, store := newTestOptions(t)
	seedDefault(t, opts)

	resp := decode[seedResponse](t, mustExecute(t, opts, "--format", "json", "seed"))

	if got := resp.Data.Counts[catalog.StageGenres]; got != (catalog.Counts{Existing: 3}) {
		t.Errorf("expected 3 existing genres, got %+v", got)
	}

	genres, err := store.ListGenres(context.Background(), catalog.ListOptions{})
	if err != nil {
		t.Fatalf("ListGenres failed: %v", err)
	}
	if len(genres) != 3 {
		t.Errorf("expected 3 genres, got %d", len(genres))
	}
	authors, err := store.ListAuthors(context.Background(), catalog.ListOptions{})
	if err != nil {
		t.Fatalf("ListAuthors failed: %v", err)
	}
	if len(authors) != 2 {
		t.Errorf("expected 2 authors, got %d", len(authors))
	}
}

func TestSeed_TextOutput(t *testing.T) {
	opts, _ := newTestOptions(t)

	expectContains(t, mustExecute(t, opts, "seed"), "STAGE", "instances")
}

func TestSeed_UnresolvableReference(t *testing.T) {
	opts, store := newTestOptions(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	err := os.WriteFile(path, []byte(`
genres:
  - name: Poetry
authors:
  - first_name: Emily
    family_name: Dickinson
books:
  - title: Poems
    summary: Collected poems
    isbn: "9780316184137"
    author: 3
instances: []
`), 0o600)
	if err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	out, err := execute(t, opts, "--format", "json", "seed", "--dataset", path)
	expectExit(t, err, ExitFailure)

	resp := decode[seedResponse](t, out)
	if resp.Status != "error" {
		t.Errorf("expected status error, got %q", resp.Status)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeSeed {
		t.Errorf("expected error code %s, got %+v", ErrCodeSeed, resp.Error)
	}

	// preflight rejects the dataset before writing
	genres, err := store.ListGenres(context.Background(), catalog.ListOptions{})
	if err != nil {
		t.Fatalf("ListGenres failed: %v", err)
	}
	if len(genres) != 0 {
		t.Errorf("expected no genres written, got %d", len(genres))
	}
}

func TestSeed_MissingDatasetFile(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, opts, "seed", "--dataset", filepath.Join(t.TempDir(), "absent.yaml"))
	expectExit(t, err, ExitCommandError)
}

func TestGenreCreate_CaseInsensitive(t *testing.T) {
	opts, _ := newTestOptions(t)

	first := decode[struct{ Data genreResult }](t, mustExecute(t, opts, "--format", "json", "genre", "create", "Fantasy"))
	if !first.Data.Created {
		t.Error("expected first create to create the genre")
	}

	second := decode[struct{ Data genreResult }](t, mustExecute(t, opts, "--format", "json", "genre", "create", "fantasy"))
	if second.Data.Created {
		t.Error("expected second create to reuse the genre")
	}
	if second.Data.Genre.ID != first.Data.Genre.ID {
		t.Errorf("expected genre %s, got %s", first.Data.Genre.ID, second.Data.Genre.ID)
	}
	if second.Data.Genre.Name != "Fantasy" {
		t.Errorf("expected stored name 'Fantasy', got %q", second.Data.Genre.Name)
	}
}

func TestGenreCreate_Invalid(t *testing.T) {
	opts, _ := newTestOptions(t)

	out, err := execute(t, opts, "genre", "create", "ab")
	expectExit(t, err, ExitFailure)
	expectContains(t, out, "Error ["+ErrCodeValidation+"]")
}

func TestGenreFind(t *testing.T) {
	opts, _ := newTestOptions(t)
	mustExecute(t, opts, "genre", "create", "Science Fiction")

	expectContains(t, mustExecute(t, opts, "genre", "find", "SCIENCE FICTION"), "Science Fiction")

	out, err := execute(t, opts, "genre", "find", "Horror")
	if err == nil {
		t.Fatal("expected error for unknown genre")
	}
	expectContains(t, out, ErrCodeNotFound)
}

func TestList_BooksByAuthor(t *testing.T) {
	opts, store := newTestOptions(t)
	seedDefault(t, opts)
	authors, err := store.ListAuthors(context.Background(), catalog.ListOptions{})
	if err != nil {
		t.Fatalf("ListAuthors failed: %v", err)
	}
	if len(authors) != 1 {
		t.Fatalf("expected 1 author, got %d", len(authors))
	}

	resp := decode[struct{ Data listResult }](t, mustExecute(t, opts, "--format", "json", "list", "books", "--author", authors[0].ID))

	if len(resp.Data.Books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(resp.Data.Books))
	}
	if resp.Data.Books[0].Title != "Book-1" || resp.Data.Books[1].Title != "Book-2" {
		t.Errorf("expected Book-1, Book-2, got %s, %s", resp.Data.Books[0].Title, resp.Data.Books[1].Title)
	}
}

func TestList_InstancesByStatus(t *testing.T) {
	opts, _ := newTestOptions(t)
	seedDefault(t, opts)

	expectContains(t, mustExecute(t, opts, "list", "instances", "--status", "Maintenance"), "XYZ")

	resp := decode[struct{ Data listResult }](t, mustExecute(t, opts, "--format", "json", "list", "instances", "--status", "Available"))
	if len(resp.Data.Instances) != 0 {
		t.Errorf("expected no available instances, got %d", len(resp.Data.Instances))
	}

	_, err := execute(t, opts, "list", "instances", "--status", "Lost")
	expectExit(t, err, ExitFailure)
}

func TestList_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown kind", []string{"list", "magazines"}, ExitCommandError},
		{"book filter on genres", []string{"list", "genres", "--author", "x"}, ExitCommandError},
		{"instance filter on books", []string{"list", "books", "--status", "Loaned"}, ExitCommandError},
		{"unknown sort key", []string{"list", "books", "--sort", "popularity"}, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := newTestOptions(t)
			_, err := execute(t, opts, tt.args...)
			expectExit(t, err, tt.code)
		})
	}
}

func TestCanDeleteAndDelete_Author(t *testing.T) {
	opts, store := newTestOptions(t)
	seedDefault(t, opts)
	ctx := context.Background()
	authors, err := store.ListAuthors(ctx, catalog.ListOptions{})
	if err != nil || len(authors) == 0 {
		t.Fatalf("ListAuthors: %d authors, err %v", len(authors), err)
	}
	authorID := authors[0].ID

	expectContains(t, mustExecute(t, opts, "can-delete", "author", authorID), "is referenced by 2 book(s)", "Book-1")

	out, err := execute(t, opts, "delete", "author", authorID)
	expectExit(t, err, ExitFailure)
	if !errors.Is(err, catalog.ErrDeleteBlocked) {
		t.Errorf("expected ErrDeleteBlocked, got %v", err)
	}
	expectContains(t, out, ErrCodeDeleteBlocked, "Book-2")

	books, err := store.ListBooks(ctx, catalog.BookFilter{AuthorID: authorID}, catalog.ListOptions{})
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	for _, b := range books {
		mustExecute(t, opts, "delete", "book", b.ID)
	}

	verdict := decode[struct{ Data verdictResult }](t, mustExecute(t, opts, "--format", "json", "can-delete", "author", authorID))
	if !verdict.Data.Allowed {
		t.Error("expected delete to be allowed once the books are gone")
	}

	mustExecute(t, opts, "delete", "author", authorID)

	if _, err := store.GetAuthor(ctx, authorID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBook_LeavesInstances(t *testing.T) {
	opts, store := newTestOptions(t)
	seedDefault(t, opts)
	ctx := context.Background()

	instances, err := store.ListInstances(ctx, catalog.InstanceFilter{}, catalog.ListOptions{})
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(instances))
	}

	expectContains(t, mustExecute(t, opts, "delete", "book", instances[0].BookID), "deleted book")

	if _, err := store.GetInstance(ctx, instances[0].ID); err != nil {
		t.Errorf("expected instance to survive, got %v", err)
	}
}

func TestCanDelete_UnguardedKind(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, opts, "can-delete", "book", catalog.NewID())
	if !errors.Is(err, catalog.ErrUnguardedKind) {
		t.Errorf("expected ErrUnguardedKind, got %v", err)
	}
}

func TestShow_Book(t *testing.T) {
	opts, store := newTestOptions(t)
	seedDefault(t, opts)
	books, err := store.ListBooks(context.Background(), catalog.BookFilter{}, catalog.ListOptions{})
	if err != nil || len(books) == 0 {
		t.Fatalf("ListBooks: %d books, err %v", len(books), err)
	}

	out := mustExecute(t, opts, "show", "book", books[0].ID)
	expectContains(t, out, "Title: Book-1", "Author: Author, Fake", "Genre: genre-a, genre-b, genre-c")
}

func TestShow_NotFound(t *testing.T) {
	opts, _ := newTestOptions(t)

	out, err := execute(t, opts, "--format", "json", "show", "author", catalog.NewID())
	if err == nil {
		t.Fatal("expected error for unknown author")
	}
	resp := decode[CLIResponse](t, out)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected error code %s, got %+v", ErrCodeNotFound, resp.Error)
	}
}

func TestShow_UnsupportedKind(t *testing.T) {
	opts, _ := newTestOptions(t)

	_, err := execute(t, opts, "show", "instance", catalog.NewID())
	expectExit(t, err, ExitCommandError)
}

func TestOpenStoreFailure(t *testing.T) {
	opts, _ := newTestOptions(t)
	opts.Open = func(context.Context) (catalog.Store, error) { return nil, io.ErrUnexpectedEOF }

	_, err := execute(t, opts, "list", "genres")
	expectExit(t, err, ExitFailure)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected the open error to be wrapped, got %v", err)
	}
}

func TestSeedOpenFailure_ExitsWithFailure(t *testing.T) {
	opts, _ := newTestOptions(t)
	opts.Open = func(context.Context) (catalog.Store, error) { return nil, io.ErrUnexpectedEOF }

	out, err := execute(t, opts, "--format", "json", "seed")
	expectExit(t, err, ExitFailure)

	resp := decode[CLIResponse](t, out)
	if resp.Error == nil || resp.Error.Code != ErrCodeGeneric {
		t.Errorf("expected error code %s, got %+v", ErrCodeGeneric, resp.Error)
	}
}

func TestUsageErrors_ExitCode(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"invalid format", []string{"--format", "yaml", "seed"}},
		{"missing argument", []string{"delete", "author"}},
		{"extra argument", []string{"list", "genres", "authors"}},
		{"unexpected argument", []string{"seed", "now"}},
		{"unknown flag", []string{"list", "--bogus", "genres"}},
		{"unknown root flag", []string{"--bogus", "seed"}},
		{"bad flag value", []string{"seed", "--concurrency", "many"}},
		{"genre create without name", []string{"genre", "create"}},
		{"tables with argument", []string{"tables", "create", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := newTestOptions(t)

			_, err := execute(t, opts, tt.args...)
			expectExit(t, err, ExitCommandError)
		})
	}
}

func TestSeed_JSONCarriesRunID(t *testing.T) {
	opts, _ := newTestOptions(t)

	resp := decode[struct {
		RunID string `json:"run_id"`
		Data  struct {
			Report struct {
				RunID string `json:"run_id"`
			} `json:"report"`
		} `json:"data"`
	}](t, mustExecute(t, opts, "--format", "json", "seed"))

	if resp.RunID == "" {
		t.Fatal("expected run_id in the response envelope")
	}
	if resp.RunID != resp.Data.Report.RunID {
		t.Errorf("expected envelope run_id %q to match report run_id %q", resp.RunID, resp.Data.Report.RunID)
	}
}
