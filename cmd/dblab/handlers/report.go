package handlers

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/orchestration"
	"github.com/imamik/dblab/internal/state"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorDim   = lipgloss.Color("#6b7280")
	colorWhite = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen)

	failStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

// renderReport produces the end-of-run summary.
func renderReport(name string, result *orchestration.Result) string {
	var b strings.Builder

	writeTitle(&b, "dblab up: "+name)
	renderHosts(&b, result.Hosts)
	renderServices(&b, result.Services)

	b.WriteString("\n")
	if result.OK() {
		b.WriteString(okStyle.Render("  All units succeeded"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(sectionStyle.Render("  Failures"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 50)))
	b.WriteString("\n")
	for _, f := range result.Failures {
		b.WriteString(failStyle.Render(fmt.Sprintf("  ✗ %-12s %s", f.Key, f.Kind)))
		b.WriteString("\n")
		fmt.Fprintf(&b, "    %s\n", f.Message)
	}
	return b.String()
}

// renderStatus produces the inventory view of a checkpoint.
func renderStatus(cs *state.ClusterState) string {
	var b strings.Builder

	writeTitle(&b, "dblab status: "+cs.Name)
	fmt.Fprintf(&b, "  %-10s %s\n", "id", cs.ClusterID)
	fmt.Fprintf(&b, "  %-10s %s\n", "region", cs.Topology.Region)
	fmt.Fprintf(&b, "  %-10s %s\n", "vpc", orDash(cs.Networking.VPCID))
	fmt.Fprintf(&b, "  %-10s %s\n", "bucket", orDash(cs.Bucket))
	up := failStyle.Render("no")
	if cs.InfrastructureUp {
		up = okStyle.Render("yes")
	}
	fmt.Fprintf(&b, "  %-10s %s\n", "up", up)

	renderHosts(&b, cs.Hosts)
	renderServices(&b, cs.Services)
	return b.String()
}

func writeTitle(b *strings.Builder, title string) {
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  " + title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n")
}

func renderHosts(b *strings.Builder, hosts state.Hosts) {
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Hosts"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 78)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-10s %-20s %-14s %-15s %-15s", "Alias", "Instance", "Zone", "Public IP", "Private IP")))
	b.WriteString("\n")

	if hosts.Count() == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteString("\n")
		return
	}
	for _, role := range config.Roles {
		for _, h := range hosts[role] {
			fmt.Fprintf(b, "  %-10s %-20s %-14s %-15s %-15s\n",
				h.Alias, h.InstanceID, h.AvailabilityZone, orDash(h.PublicIP), orDash(h.PrivateIP))
		}
	}
}

func renderServices(b *strings.Builder, services map[state.ServiceKind]state.ManagedServiceState) {
	if len(services) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Managed services"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 78)))
	b.WriteString("\n")
	for _, kind := range slices.Sorted(maps.Keys(services)) {
		svc := services[kind]
		endpoint := "-"
		if len(svc.Endpoints) > 0 {
			endpoint = svc.Endpoints[0]
		}
		fmt.Fprintf(b, "  %-10s %-20s %-14s %s\n", kind, svc.ID, svc.State, endpoint)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
