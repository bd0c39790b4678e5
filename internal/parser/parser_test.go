package parser

import (
	"bytes"
	"testing"

	"github.com/enprot/enprot/internal/block"
)

const (
	left  = "<<<"
	right = ">>>"
)

func mustParse(t *testing.T, doc string) []block.Block {
	t.Helper()
	blocks, err := Parse([]byte(doc), left, right)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return blocks
}

func TestParsePlainRegion(t *testing.T) {
	doc := "before\n" +
		left + " BEGIN Secret " + right + "\n" +
		"hello\n" +
		left + " END Secret " + right + "\n" +
		"after\n"

	blocks := mustParse(t, doc)
	if len(blocks) != 3 {
		t.Fatalf("got %d top-level blocks, want 3", len(blocks))
	}
	if !blocks[0].IsText || string(blocks[0].Text) != "before\n" {
		t.Fatalf("blocks[0] = %+v", blocks[0])
	}
	r := blocks[1].Region
	if r == nil || r.Name != "Secret" || r.State != block.Plain {
		t.Fatalf("blocks[1] region = %+v", r)
	}
	if len(r.Children) != 1 || string(r.Children[0].Text) != "hello\n" {
		t.Fatalf("region children = %+v", r.Children)
	}
}

func TestParseDirectivesAndState(t *testing.T) {
	doc := left + ` BEGIN Doc store:abc123 ` + right + "\n" +
		"ignored body\n" +
		left + " END Doc " + right + "\n"

	blocks := mustParse(t, doc)
	r := blocks[0].Region
	if r.State != block.Stored {
		t.Fatalf("state = %v, want Stored", r.State)
	}
	v, ok := r.Directives.Get("store")
	if !ok || v != "abc123" {
		t.Fatalf("store directive = %q, %v", v, ok)
	}
}

func TestParseDataFoldsIntoProt(t *testing.T) {
	doc := left + ` BEGIN Doc prot:$pbkdf2-sha256$i=1000$aes-256-gcm$iv=aa,ad=$bb ` + right + "\n" +
		left + " DATA cc " + right + "\n" +
		left + " END Doc " + right + "\n"

	blocks := mustParse(t, doc)
	r := blocks[0].Region
	if r.State != block.Encrypted {
		t.Fatalf("state = %v, want Encrypted", r.State)
	}
	v, _ := r.Directives.Get("prot")
	want := "$pbkdf2-sha256$i=1000$aes-256-gcm$iv=aa,ad=$bbcc"
	if v != want {
		t.Fatalf("prot = %q, want %q", v, want)
	}
	if len(r.Children) != 0 {
		t.Fatalf("expected no children for Encrypted region, got %+v", r.Children)
	}
}

func TestParseDataOutsideProtIsText(t *testing.T) {
	doc := left + " BEGIN Doc " + right + "\n" +
		left + " DATA not-ciphertext " + right + "\n" +
		left + " END Doc " + right + "\n"

	blocks := mustParse(t, doc)
	r := blocks[0].Region
	if len(r.Children) != 1 || !r.Children[0].IsText {
		t.Fatalf("expected a single text child, got %+v", r.Children)
	}
}

func TestParseNestedRegions(t *testing.T) {
	doc := left + " BEGIN Outer " + right + "\n" +
		left + " BEGIN Inner " + right + "\n" +
		"x\n" +
		left + " END Inner " + right + "\n" +
		left + " END Outer " + right + "\n"

	blocks := mustParse(t, doc)
	outer := blocks[0].Region
	if len(outer.Children) != 1 {
		t.Fatalf("outer children = %+v", outer.Children)
	}
	inner := outer.Children[0].Region
	if inner == nil || inner.Name != "Inner" {
		t.Fatalf("inner region = %+v", inner)
	}
}

func TestParseUnclosedRegionErrors(t *testing.T) {
	doc := left + " BEGIN Doc " + right + "\n" + "body\n"
	if _, err := Parse([]byte(doc), left, right); err == nil {
		t.Fatal("expected error for unclosed region")
	}
}

func TestParseNameMismatchErrors(t *testing.T) {
	doc := left + " BEGIN Doc " + right + "\n" +
		left + " END Other " + right + "\n"
	if _, err := Parse([]byte(doc), left, right); err == nil {
		t.Fatal("expected error for name mismatch")
	}
}

func TestParseUnknownVerbErrors(t *testing.T) {
	doc := left + " FROBNICATE Doc " + right + "\n"
	if _, err := Parse([]byte(doc), left, right); err == nil {
		t.Fatal("expected error for unknown verb")
	}
}

func TestParseDuplicateDirectiveErrors(t *testing.T) {
	doc := left + " BEGIN Doc store:a store:b " + right + "\n" +
		left + " END Doc " + right + "\n"
	if _, err := Parse([]byte(doc), left, right); err == nil {
		t.Fatal("expected error for duplicate directive key")
	}
}

func TestParseMarkerLookAlikeIsText(t *testing.T) {
	doc := left + "BEGIN Doc" + right + "\n"
	blocks := mustParse(t, doc)
	if len(blocks) != 1 || !blocks[0].IsText {
		t.Fatalf("expected the malformed-looking line to be Text, got %+v", blocks)
	}
}

func TestRoundTripUntouchedIsByteExact(t *testing.T) {
	docs := []string{
		"plain text only\n",
		left + " BEGIN A " + right + "\r\n" +
			"body\r\n" +
			left + " END A " + right + "\r\n",
		"pre\n" + left + ` BEGIN A prot:$pbkdf2-sha256$i=1000$aes-256-gcm$iv=aa,ad=$bb ` + right + "\n" +
			left + " DATA cc " + right + "\n" +
			left + " END A " + right + "\n" +
			"post\n",
	}
	for i, doc := range docs {
		blocks, err := Parse([]byte(doc), left, right)
		if err != nil {
			t.Fatalf("doc %d: Parse: %v", i, err)
		}
		out := Serialize(blocks, left, right)
		if !bytes.Equal(out, []byte(doc)) {
			t.Fatalf("doc %d: round trip mismatch:\n got: %q\nwant: %q", i, out, doc)
		}
	}
}

func TestSerializeTouchedRegionWrapsLongProt(t *testing.T) {
	doc := left + " BEGIN Doc " + right + "\n" +
		"secret\n" +
		left + " END Doc " + right + "\n"
	blocks := mustParse(t, doc)
	r := blocks[0].Region
	r.Touched = true
	r.State = block.Encrypted
	r.Children = nil
	longVal := bytes.Repeat([]byte("a"), 200)
	r.Directives = r.Directives.Set("prot", string(longVal))

	out := Serialize(blocks, left, right)

	reparsed, err := Parse(out, left, right)
	if err != nil {
		t.Fatalf("reparse: %v\noutput: %s", err, out)
	}
	got, _ := reparsed[0].Region.Directives.Get("prot")
	if got != string(longVal) {
		t.Fatalf("prot value did not round trip through DATA wrapping: got %d bytes, want %d", len(got), len(longVal))
	}
	if bytes.Count(out, []byte(" DATA ")) == 0 {
		t.Fatalf("expected at least one DATA continuation line, got:\n%s", out)
	}
}
