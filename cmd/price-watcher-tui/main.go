package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/anchor"
	"github.com/pipbot/gopip/internal/domain"
	"github.com/pipbot/gopip/internal/pricefeed"
	"github.com/pipbot/gopip/pkg/config"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241"))
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	flatStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	footStyle   = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

type row struct {
	snap domain.PriceSnapshot
	err  error
}

type model struct {
	symbols  []domain.SymbolConfig
	source   pricefeed.Source
	anchors  *anchor.Store
	interval time.Duration

	rows    map[string]row
	refresh time.Time
}

func (m model) Init() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		now := time.Time(msg)
		m.refresh = now
		ctx, cancel := context.WithTimeout(context.Background(), m.interval)
		for _, sc := range m.symbols {
			m.rows[sc.Symbol] = fetchRow(ctx, m.source, m.anchors, sc, now)
		}
		cancel()
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
	}
	return m, nil
}

func fetchRow(ctx context.Context, src pricefeed.Source, anchors *anchor.Store, sc domain.SymbolConfig, now time.Time) row {
	tick, err := src.CurrentPrice(ctx, sc.Symbol)
	if err != nil {
		return row{err: err}
	}
	cur, ok := tick.Mid()
	if !ok {
		return row{err: fmt.Errorf("无可用报价")}
	}
	a, err := anchors.Resolve(ctx, sc.Symbol, now)
	if err != nil {
		return row{err: err}
	}
	high, low, err := src.ExtremesSince(ctx, sc.Symbol, a.AnchorTime)
	if err != nil {
		high, low = cur, cur
	}
	return row{snap: domain.BuildSnapshot(sc, a.StartPrice, cur, high, low)}
}

func (m model) View() string {
	out := titleStyle.Render("gopip price watcher") + "\n\n"
	out += headerStyle.Render(fmt.Sprintf("%-10s %12s %12s %10s %8s %8s %6s",
		"SYMBOL", "START", "CURRENT", "PIPS", "DIR", "STRONG", "RATIO")) + "\n"

	names := make([]string, 0, len(m.symbols))
	for _, sc := range m.symbols {
		names = append(names, sc.Symbol)
	}
	sort.Strings(names)

	for _, name := range names {
		r, ok := m.rows[name]
		if !ok {
			out += flatStyle.Render(fmt.Sprintf("%-10s %s", name, "...")) + "\n"
			continue
		}
		if r.err != nil {
			out += errStyle.Render(fmt.Sprintf("%-10s %v", name, r.err)) + "\n"
			continue
		}
		s := r.snap
		style := flatStyle
		switch s.Direction {
		case domain.DirectionUp:
			style = upStyle
		case domain.DirectionDown:
			style = downStyle
		}
		out += style.Render(fmt.Sprintf("%-10s %12v %12v %10.1f %8s %8s %6.2f",
			s.Symbol, s.StartPrice, s.CurrentPrice, s.PipsMoved,
			s.Direction, s.StrongDirection, s.ThresholdRatio)) + "\n"
	}

	out += "\n" + footStyle.Render(
		fmt.Sprintf("刷新 %s  |  q 退出", m.refresh.Format("15:04:05")))
	return out
}

func main() {
	var (
		configPath = flag.String("config", "yml/config.yaml", "配置文件路径")
		interval   = flag.Duration("interval", time.Second, "刷新间隔")
	)
	flag.Parse()

	_ = godotenv.Load()
	logrus.SetOutput(io.Discard) // TUI 模式下日志不能写终端

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	bridge, err := pricefeed.NewBridge(pricefeed.BridgeConfig{
		BaseURL: cfg.Pricefeed.BaseURL,
		Token:   os.Getenv(cfg.Pricefeed.TokenEnv),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化行情桥接失败: %v\n", err)
		os.Exit(1)
	}

	anchors, err := anchor.NewStore(anchor.Config{
		ServerTZ:     cfg.Anchor.ServerTZ,
		AnchorHour:   cfg.Anchor.Hour,
		AnchorMinute: cfg.Anchor.Minute,
	}, bridge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化锚点存储失败: %v\n", err)
		os.Exit(1)
	}

	m := model{
		symbols:  cfg.Symbols,
		source:   bridge,
		anchors:  anchors,
		interval: *interval,
		rows:     make(map[string]row),
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI 退出: %v\n", err)
		os.Exit(1)
	}
}
