package monitor

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vibesense/phmwatch/internal/series"
)

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeyAcknowledge = "a"
	KeyClear       = "c"
	KeyPing        = "p"
	KeyReconnect   = "r"
	KeyDisconnect  = "d"
	KeyPrevFeature = "left"
	KeyPrevH       = "h"
	KeyNextFeature = "right"
	KeyNextL       = "l"
	KeyCollapse    = "esc"
	KeyToggleHelp  = "?"
)

// HandleKeyMsg processes keyboard input and returns updated model state and command.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}

	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyAcknowledge:
		return true, m.acknowledgeLatest()

	case KeyClear:
		m.store.ClearBuffers()
		m.setNotice("buffers cleared", false)
		return true, nil

	case KeyPing:
		m.store.Ping()
		m.setNotice("ping sent", false)
		return true, nil

	case KeyReconnect:
		if m.store.Sensor() == "" {
			m.store.Connect(m.sensor)
		} else {
			m.store.Reconnect()
		}
		m.setNotice("reconnecting to "+m.sensor, false)
		return true, nil

	case KeyDisconnect:
		m.store.Disconnect()
		m.setNotice("disconnected, press r to reconnect", false)
		return true, nil

	case KeyPrevFeature, KeyPrevH:
		m.selected = (m.selected - 1 + len(series.FeatureChannels)) % len(series.FeatureChannels)
		return true, nil

	case KeyNextFeature, KeyNextL:
		m.selected = (m.selected + 1) % len(series.FeatureChannels)
		return true, nil
	}

	return false, nil
}
