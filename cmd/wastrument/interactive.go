package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/aaronmunsters/wastrumentation/config"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/wasm"
	"github.com/aaronmunsters/wastrumentation/wastrumentation"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	joinPointStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	resultStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// runInteractive lists the join points the aspect activates, lets the
// operator toggle which target functions get instrumented, and runs the
// pipeline once confirmed, writing outFile (grounded in the teacher's
// cmd/run/interactive.go select-then-confirm flow).
func runInteractive(cfg config.Configuration, target *wasm.Module, aspectSource, outFile string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("interactive mode requires a terminal on stdin")
	}

	jp, err := previewJoinPoints(aspectSource)
	if err != nil {
		return fmt.Errorf("parse aspect: %w", err)
	}

	numImported := uint32(target.NumImportedFuncs())
	total := numImported + uint32(len(target.Code))
	funcIdxs := make([]uint32, 0, total-numImported)
	for idx := numImported; idx < total; idx++ {
		funcIdxs = append(funcIdxs, idx)
	}

	names := map[uint32]string{}
	for _, exp := range target.Exports {
		if exp.Kind == wasm.KindFunc {
			names[exp.Idx] = exp.Name
		}
	}

	filter := textinput.New()
	filter.Placeholder = "filter by index or export name"
	filter.Prompt = "/ "
	filter.CharLimit = 64

	m := &interactiveModel{
		cfg:          cfg,
		target:       target,
		aspectSource: aspectSource,
		outFile:      outFile,
		joinPoints:   jp,
		funcIdxs:     funcIdxs,
		funcNames:    names,
		visible:      funcIdxs,
		filter:       filter,
		selected:     make(map[uint32]bool, len(funcIdxs)),
	}
	for _, idx := range funcIdxs {
		m.selected[idx] = true
	}

	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("interactive mode: %w", err)
	}
	fm := finalModel.(*interactiveModel)
	if fm.err != nil {
		return fm.err
	}
	return nil
}

type interactiveState int

const (
	stateSelectTargets interactiveState = iota
	stateRunning
	stateDone
)

type interactiveModel struct {
	cfg          config.Configuration
	target       *wasm.Module
	aspectSource string
	outFile      string
	joinPoints   *dsl.JoinPoints
	funcIdxs     []uint32
	funcNames    map[uint32]string
	visible      []uint32
	filter       textinput.Model
	selected     map[uint32]bool
	cursor       int
	state        interactiveState
	filtering    bool
	result       string
	err          error
}

// applyFilter narrows m.visible to functions whose index or export name
// contains the filter text, resetting the cursor so it stays in range.
func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if q == "" {
		m.visible = m.funcIdxs
	} else {
		visible := make([]uint32, 0, len(m.funcIdxs))
		for _, idx := range m.funcIdxs {
			if strconv.FormatUint(uint64(idx), 10) == q || strings.Contains(strings.ToLower(m.funcNames[idx]), q) {
				visible = append(visible, idx)
			}
		}
		m.visible = visible
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

type runDoneMsg struct {
	result string
	err    error
}

func (m *interactiveModel) Init() tea.Cmd { return nil }

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.state {
		case stateSelectTargets:
			if m.filtering {
				switch msg.String() {
				case "esc", "enter":
					m.filtering = false
					m.filter.Blur()
				case "ctrl+c":
					return m, tea.Quit
				default:
					var cmd tea.Cmd
					m.filter, cmd = m.filter.Update(msg)
					m.applyFilter()
					return m, cmd
				}
				break
			}
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "/":
				m.filtering = true
				return m, m.filter.Focus()
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
			case "down", "j":
				if m.cursor < len(m.visible)-1 {
					m.cursor++
				}
			case " ":
				if len(m.visible) > 0 {
					idx := m.visible[m.cursor]
					m.selected[idx] = !m.selected[idx]
				}
			case "enter":
				m.state = stateRunning
				return m, m.runPipeline
			}
		case stateDone:
			if msg.String() == "q" || msg.String() == "ctrl+c" || msg.String() == "enter" {
				return m, tea.Quit
			}
		}
	case runDoneMsg:
		m.state = stateDone
		m.result = msg.result
		m.err = msg.err
	}
	return m, nil
}

func (m *interactiveModel) runPipeline() tea.Msg {
	set := map[uint32]struct{}{}
	for idx, on := range m.selected {
		if on {
			set[idx] = struct{}{}
		}
	}
	m.cfg.TargetIndices = &set

	b, err := backendFor(m.cfg.Language)
	if err != nil {
		return runDoneMsg{err: err}
	}
	pipeline := wastrumentation.New(b, toolchainCompiler{})
	out, err := pipeline.Instrument(m.cfg, m.target, m.aspectSource)
	if err != nil {
		return runDoneMsg{err: err}
	}
	if m.outFile == "" {
		return runDoneMsg{result: fmt.Sprintf("linked module: %d funcs, %d exports", len(out.Funcs), len(out.Exports))}
	}
	if err := os.WriteFile(m.outFile, out.Encode(), 0o644); err != nil {
		return runDoneMsg{err: fmt.Errorf("write output: %w", err)}
	}
	return runDoneMsg{result: fmt.Sprintf("wrote %s (%d funcs, %d exports)", m.outFile, len(out.Funcs), len(out.Exports))}
}

func (m *interactiveModel) View() string {
	switch m.state {
	case stateRunning:
		return "Running pipeline...\n"
	case stateDone:
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n", m.err)) + helpStyle.Render("\npress enter to exit\n")
		}
		return resultStyle.Render(m.result) + "\n" + helpStyle.Render("\npress enter to exit\n")
	}

	var b string
	b += titleStyle.Render("Wastrumentation") + "\n\n"
	b += joinPointStyle.Render(summarizeJoinPoints(m.joinPoints)) + "\n\n"
	if m.filtering || m.filter.Value() != "" {
		b += m.filter.View() + "\n"
	}
	b += fmt.Sprintf("Target functions (%d/%d shown, space to toggle, enter to run):\n", len(m.visible), len(m.funcIdxs))
	for i, idx := range m.visible {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		box := "[ ]"
		if m.selected[idx] {
			box = "[x]"
		}
		label := fmt.Sprintf("func %d", idx)
		if name, ok := m.funcNames[idx]; ok {
			label += " (" + name + ")"
		}
		line := fmt.Sprintf("%s%s %s", cursor, box, label)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b += line + "\n"
	}
	b += helpStyle.Render("\nup/down: move  space: toggle  /: filter  enter: run  q: quit\n")
	return b
}

func summarizeJoinPoints(jp *dsl.JoinPoints) string {
	var active []string
	add := func(name string, on bool) {
		if on {
			active = append(active, name)
		}
	}
	add("if_then", jp.IfThen)
	add("if_then_else", jp.IfThenElse)
	add("br_if", jp.BrIf)
	add("br_table", jp.BrTable)
	add("select", jp.Select)
	add("call_pre", jp.CallPre)
	add("call_post", jp.CallPost)
	add("call_indirect_pre", jp.CallIndirectPre)
	add("call_indirect_post", jp.CallIndirectPost)
	add("block_pre", jp.BlockPre)
	add("block_post", jp.BlockPost)
	add("loop_pre", jp.LoopPre)
	add("loop_post", jp.LoopPost)
	add("generic_apply", jp.GenericApply)
	if jp.HasSpecializedApply() {
		active = append(active, fmt.Sprintf("specialized_apply(%d)", len(jp.SpecializedApplies())))
	}
	if len(active) == 0 {
		return "Active join points: none"
	}
	out := "Active join points:"
	for _, a := range active {
		out += " " + a
	}
	return out
}
