package settingsform

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/internal/store"
)

// DoneMsg signals the form closed. Saved is false when the user cancelled.
type DoneMsg struct {
	Saved bool
}

// formValues holds the editable field state. The Bubble Tea runtime copies
// Model on every Update while the huh form keeps pointers to these fields,
// so they must live behind a pointer shared by all copies.
type formValues struct {
	threshold     string
	expiringDays  string
	enableExpSoon bool
	pharmacyName  string
	tagline       string
	receiptFooter string
}

// Model is the notification settings and branding form.
type Model struct {
	bk   store.Bookkeeping
	form *huh.Form
	vals *formValues
}

// New builds the form pre-filled from the bookkeeping store.
func New(bk store.Bookkeeping) Model {
	settings := bk.GetSettings()
	branding := bk.GetBranding()

	vals := &formValues{
		threshold:     strconv.Itoa(settings.LowStockThreshold),
		expiringDays:  strconv.Itoa(settings.ExpiringSoonDays),
		enableExpSoon: settings.EnableExpiringSoon,
		pharmacyName:  branding.PharmacyName,
		tagline:       branding.Tagline,
		receiptFooter: branding.ReceiptFooter,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Low stock threshold").
				Description("Alert when stock falls to this quantity or below").
				Value(&vals.threshold).
				Validate(validateNonNegativeInt),
			huh.NewInput().
				Title("Expiring soon window (days)").
				Description("Alert this many days before a product expires").
				Value(&vals.expiringDays).
				Validate(validateNonNegativeInt),
			huh.NewConfirm().
				Title("Enable expiring-soon alerts").
				Value(&vals.enableExpSoon),
		).Title("Notifications"),
		huh.NewGroup(
			huh.NewInput().
				Title("Pharmacy name").
				Value(&vals.pharmacyName),
			huh.NewInput().
				Title("Tagline").
				Value(&vals.tagline),
			huh.NewInput().
				Title("Receipt footer").
				Value(&vals.receiptFooter),
		).Title("Branding"),
	)

	return Model{bk: bk, form: form, vals: vals}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update drives the form and persists on completion. Saving settings fires
// the store broadcast, which re-derives the notification feed.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		return m, func() tea.Msg { return DoneMsg{Saved: false} }
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, tea.Batch(cmd, m.save())
	}
	return m, cmd
}

// save writes the edited values back to the bookkeeping store.
func (m Model) save() tea.Cmd {
	return func() tea.Msg {
		threshold, _ := strconv.Atoi(m.vals.threshold)
		days, _ := strconv.Atoi(m.vals.expiringDays)

		if err := m.bk.SetSettings(model.NotificationSettings{
			LowStockThreshold:  threshold,
			ExpiringSoonDays:   days,
			EnableExpiringSoon: m.vals.enableExpSoon,
		}); err != nil {
			return DoneMsg{Saved: false}
		}

		branding := m.bk.GetBranding()
		branding.PharmacyName = m.vals.pharmacyName
		branding.Tagline = m.vals.tagline
		branding.ReceiptFooter = m.vals.receiptFooter
		if err := m.bk.SetBranding(branding); err != nil {
			return DoneMsg{Saved: false}
		}

		return DoneMsg{Saved: true}
	}
}

// View renders the form.
func (m Model) View() string {
	return m.form.View()
}

// validateNonNegativeInt accepts whole numbers zero or greater.
func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number (0 or more)")
	}
	return nil
}
