package errors

import (
	"strings"
	"testing"

	"tsgen/pkg/source"
)

func TestReporterAccumulatesAndFinalizesOnce(t *testing.T) {
	r := NewReporter()
	r.ReportError(Position{Line: 1, Column: 2}, "first %s", "problem")
	r.Report(SeverityWarning, Position{Line: 3, Column: 4}, "second")

	if r.PendingErrorCount() != 1 {
		t.Errorf("pending error count = %d, want 1", r.PendingErrorCount())
	}

	out := r.Finalize()
	if len(out) != 2 {
		t.Fatalf("finalized %d diagnostics, want 2", len(out))
	}
	if !r.HasErrors() {
		t.Errorf("reporter should still report errors after finalize")
	}

	defer func() {
		if recover() == nil {
			t.Errorf("second Finalize must panic")
		}
	}()
	r.Finalize()
}

func TestTakePendingClearsBetweenRounds(t *testing.T) {
	r := NewReporter()
	r.ReportError(Position{}, "round one noise")
	if got := len(r.TakePending()); got != 1 {
		t.Fatalf("TakePending returned %d, want 1", got)
	}
	if r.PendingErrorCount() != 0 {
		t.Errorf("pending not cleared")
	}
	out := r.Finalize()
	if len(out) != 0 {
		t.Errorf("cleared diagnostics leaked into finalize: %v", out)
	}
}

func TestRelatedInformationStaysOrdered(t *testing.T) {
	r := NewReporter()
	d := r.ReportError(Position{Line: 1}, "primary")
	r.Relate(d, Position{Line: 2}, "first note")
	r.Relate(d, Position{Line: 3}, "second note")
	if len(d.Related) != 2 || d.Related[0].Msg != "first note" {
		t.Errorf("related info out of order: %+v", d.Related)
	}
}

func TestDisplayQuotesSourceLine(t *testing.T) {
	sf := source.NewSourceFile("x.ts", "", "let a = b;\n")
	r := NewReporter()
	r.ReportError(At(sf, 8, 9), "cannot resolve name 'b'")
	diags := r.Finalize()

	var sb strings.Builder
	DisplayDiagnostics(&sb, diags)
	out := sb.String()
	if !strings.Contains(out, "let a = b;") {
		t.Errorf("display lacks the quoted source line:\n%s", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("display lacks the caret marker:\n%s", out)
	}
}

func TestPositionAtComputesLineCol(t *testing.T) {
	sf := source.NewSourceFile("x.ts", "", "ab\ncd\nef")
	p := At(sf, 4, 5)
	if p.Line != 2 || p.Column != 2 {
		t.Errorf("At offset 4 = %d:%d, want 2:2", p.Line, p.Column)
	}
}
