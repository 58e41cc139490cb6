// Package keys holds the key bindings shared by the views.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap is the full set of bindings
type KeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding
	Right key.Binding
	Enter key.Binding
	Back  key.Binding
	Quit  key.Binding
	Tab   key.Binding
	Help  key.Binding
	Save  key.Binding
	Yes   key.Binding
	No    key.Binding

	// Task list
	New          key.Binding
	Edit         key.Binding
	Delete       key.Binding
	Search       key.Binding
	Filter       key.Binding
	ClearFilters key.Binding
	Refresh      key.Binding
	Detail       key.Binding
	Comment      key.Binding
	Attach       key.Binding
	Download     key.Binding
	AllProjects  key.Binding

	// Sort holds one binding per sortable column, in table order
	Sort []key.Binding
}

// DefaultKeyMap returns the default bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Right: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("↵", "select")),
		Back:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Tab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Save:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Yes:   key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		No:    key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),

		New:          key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Edit:         key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Search:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Filter:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		ClearFilters: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
		Refresh:      key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Detail:       key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "focus detail")),
		Comment:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
		Attach:       key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "attach files")),
		Download:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "download")),
		AllProjects:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all projects")),

		Sort: []key.Binding{
			key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "sort title")),
			key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "sort project")),
			key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "sort assignee")),
			key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "sort priority")),
			key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "sort status")),
			key.NewBinding(key.WithKeys("6"), key.WithHelp("6", "sort due date")),
		},
	}
}
