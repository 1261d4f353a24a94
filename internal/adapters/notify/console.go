package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo un resumen por ciclo.
type Console struct {
	out   io.Writer
	table bool
	quiet bool
}

// NewConsole crea un notificador que escribe a stdout.
// table=true imprime una fila por grupo en lugar de la línea compacta.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// SetQuiet suprime los ciclos sin candidatos.
func (c *Console) SetQuiet(q bool) {
	c.quiet = q
}

// NotifyCycle imprime el resultado de un ciclo del detector.
func (c *Console) NotifyCycle(_ context.Context, res domain.CycleResult) error {
	ts := res.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	now := ts.Format("15:04:05")

	if res.Failed() {
		fmt.Fprintf(c.out, "[%s] cycle failed (%s): %v\n", now, domain.ErrorClass(res.Err), res.Err)
		return nil
	}
	if len(res.Groups) == 0 {
		if !c.quiet {
			fmt.Fprintf(c.out, "[%s] %d positions, no merge candidates\n", now, res.Positions)
		}
		return nil
	}

	if c.table {
		c.printTable(now, res)
	} else {
		c.printCompact(now, res)
	}
	return nil
}

func (c *Console) printCompact(now string, res domain.CycleResult) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d pos → %d groups sub:%d dry:%d cd:%d skip:%d def:%d fail:%d",
		now, res.Positions, len(res.Groups),
		res.Count(domain.StatusSubmitted), res.Count(domain.StatusDryRun),
		res.Count(domain.StatusCooldown), res.Count(domain.StatusSkipped),
		res.Count(domain.StatusDeferred), res.Count(domain.StatusFailed))

	shown := 0
	for _, g := range res.Groups {
		if shown >= 4 {
			break
		}
		if g.Status == domain.StatusCooldown {
			continue
		}
		fmt.Fprintf(&sb, " | %s %s %s×%s", statusIcon(g.Status), compactName(label(g), 28), g.Amount.String(), kindLabel(g))
		shown++
	}
	fmt.Fprintln(c.out, sb.String())
}

func (c *Console) printTable(now string, res domain.CycleResult) {
	fmt.Fprintf(c.out, "\n[%s] cycle %s: %d positions, %d groups (%s)\n",
		now, shortID(res.ID), res.Positions, len(res.Groups), res.Duration.Round(time.Millisecond))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Kind", "Event", "Target", "IndexSet", "Amount", "Status", "Tx / Error")
	for i, g := range res.Groups {
		table.Append(
			fmt.Sprintf("%d", i+1),
			string(g.Kind),
			compactName(g.EventSlug, 30),
			compactName(g.Target, 14),
			g.IndexSet,
			g.Amount.String(),
			string(g.Status),
			detail(g),
		)
	}
	table.Render()
}

func detail(g domain.GroupOutcome) string {
	if g.Err != nil {
		return compactName(domain.ErrorClass(g.Err)+": "+g.Err.Error(), 40)
	}
	if g.Submission != nil && g.Submission.TxHash != "" {
		return compactName(g.Submission.TxHash, 20)
	}
	return "-"
}

func label(g domain.GroupOutcome) string {
	if g.EventSlug != "" {
		return g.EventSlug
	}
	return g.Target
}

func kindLabel(g domain.GroupOutcome) string {
	if g.Kind == domain.KindMerge {
		return "merge"
	}
	return "convert"
}

func statusIcon(s domain.GroupStatus) string {
	switch s {
	case domain.StatusSubmitted:
		return "[OK]"
	case domain.StatusDryRun:
		return "[DRY]"
	case domain.StatusDeferred:
		return "[WAIT]"
	case domain.StatusSkipped:
		return "[SKIP]"
	case domain.StatusFailed:
		return "[FAIL]"
	default:
		return "[--]"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// compactName trunca a max runas con "...".
func compactName(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
