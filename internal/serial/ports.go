package serial

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"go.bug.st/serial/enumerator"
)

// PortsLoadedMsg is sent when port enumeration completes.
type PortsLoadedMsg struct {
	Ports []PortInfo
	Err   error
}

// LoadPorts enumerates ports off the UI goroutine.
func LoadPorts() tea.Cmd {
	return func() tea.Msg {
		ports, err := ListPorts()
		return PortsLoadedMsg{Ports: ports, Err: err}
	}
}

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Label is a one-line description for pickers.
func (p PortInfo) Label() string {
	if !p.IsUSB {
		return p.Name
	}
	desc := fmt.Sprintf("%s:%s", p.VID, p.PID)
	if p.Product != "" {
		desc = p.Product + " " + desc
	}
	return fmt.Sprintf("%s (%s)", p.Name, desc)
}

// ListPorts returns available serial ports, USB devices first. Handheld
// 2D-code scanners in serial mode show up as USB CDC ports.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	sortPorts(result)
	return result, nil
}

func sortPorts(ports []PortInfo) {
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].IsUSB != ports[j].IsUSB {
			return ports[i].IsUSB
		}
		return ports[i].Name < ports[j].Name
	})
}
