// Package ui provides the plain terminal output used outside the dashboard.
//
// # Components
//
//	Spinner   - Animated status line for a single blocking operation
//	EventLog  - One line per stream event, used by watch when stdout is
//	            not a terminal
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Connected, acknowledged
//	ColorError     (red)    - Errors and critical alerts
//	ColorWarning   (yellow) - Disconnects and warning alerts
//	ColorInfo      (cyan)   - Feature samples
//	ColorMuted     (gray)   - Timestamps and timing
//
// DisableColors switches to monochrome output for --no-color.
package ui
