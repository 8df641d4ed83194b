package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// Notify imprime el quote y el veredicto en el modo configurado.
func (c *Console) Notify(_ context.Context, q domain.Quote, v domain.Verdict) error {
	if c.table {
		c.printQuoteTable(q, v)
	} else {
		c.printCompact(q, v)
	}
	return nil
}

// Clear marca la vista como vacía.
func (c *Console) Clear(_ context.Context) error {
	fmt.Fprintf(c.out, "[%s] cleared\n", c.now().Format("15:04:05"))
	return nil
}

// printCompact imprime una sola línea por poll.
func (c *Console) printCompact(q domain.Quote, v domain.Verdict) {
	fmt.Fprintf(c.out, "[%s] %s sell %s buy %s vol %s/%s pp %s liq %s → %s (%s)\n",
		stamp(q.FetchedAt, c.now),
		q.ProductID,
		price(q.SellPrice), price(q.BuyPrice),
		volume(q.SellVolume), volume(q.BuyVolume),
		percent(v.ProfitPercent), volume(v.Liquidity),
		v.Label(), v.Reason,
	)
}

// printQuoteTable imprime la fila del producto en forma de tabla.
func (c *Console) printQuoteTable(q domain.Quote, v domain.Verdict) {
	fmt.Fprintf(c.out, "\n%s\n", q.ProductID)
	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Sell Price", "Buy Price", "Sell Volume", "Buy Volume", "Good Buy", "Reason")
	table.Append(
		stamp(q.FetchedAt, c.now),
		price(q.SellPrice),
		price(q.BuyPrice),
		volume(q.SellVolume),
		volume(q.BuyVolume),
		v.Label(),
		v.Reason,
	)
	table.Render()
}

// PrintTrade confirma un trade aceptado.
func (c *Console) PrintTrade(tx domain.Transaction, balance float64) {
	fmt.Fprintf(c.out, "%s %d x %s @ %.2f = %.2f | balance %.2f\n",
		tx.Kind, tx.Quantity, tx.ProductID, tx.UnitPrice, tx.Total, balance)
}

// PrintRejection muestra el motivo de un trade rechazado.
func (c *Console) PrintRejection(err error) {
	fmt.Fprintf(c.out, "REJECTED: %v\n", err)
}

// PrintLedger imprime balance, inventario e historial.
// Si q no es nil, añade el valor de mercado del producto cotizado.
func (c *Console) PrintLedger(state domain.LedgerState, q *domain.Quote) {
	fmt.Fprintf(c.out, "\n  Balance:   %.2f\n", state.Balance)
	if q != nil {
		fmt.Fprintf(c.out, "  Net worth: %.2f (%s @ %s)\n", state.NetWorth(*q), q.ProductID, price(q.SellPrice))
	}
	fmt.Fprintf(c.out, "  Realized:  %+.2f\n\n", state.Realized())

	if len(state.Inventory) == 0 {
		fmt.Fprintln(c.out, "  Inventory is empty.")
	} else {
		ids := make([]string, 0, len(state.Inventory))
		for id := range state.Inventory {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Product", "Quantity")
		for _, id := range ids {
			tbl.Append(id, fmt.Sprintf("%d", state.Inventory[id]))
		}
		tbl.Render()
	}

	if len(state.History) == 0 {
		fmt.Fprintln(c.out, "  No transactions yet.")
		return
	}

	fmt.Fprintln(c.out)
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("#", "Time", "Kind", "Product", "Qty", "Unit", "Total")
	for i, tx := range state.History {
		tbl.Append(
			fmt.Sprintf("%d", i+1),
			tx.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(tx.Kind),
			tx.ProductID,
			fmt.Sprintf("%d", tx.Quantity),
			fmt.Sprintf("%.2f", tx.UnitPrice),
			fmt.Sprintf("%.2f", tx.Total),
		)
	}
	tbl.Render()
}

// PrintSuggestions lista product ids.
func (c *Console) PrintSuggestions(prefix string, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintf(c.out, "no products match %q\n", prefix)
		return
	}
	fmt.Fprintln(c.out, strings.Join(ids, "\n"))
}

// --- helpers de formato ---

// price muestra N/A para 0, igual que la página original mostraba campos ausentes.
func price(v float64) string {
	if v == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", v)
}

func volume(v float64) string {
	if v == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", v)
}

func percent(v float64) string {
	if math.IsInf(v, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.1f%%", v)
}

func stamp(t time.Time, now func() time.Time) string {
	if t.IsZero() {
		t = now()
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
