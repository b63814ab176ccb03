package tray

import (
	"context"
	"time"

	"menagent/internal/api"
	"menagent/internal/auth"
	"menagent/internal/scheduler"
	"menagent/internal/streaming"
	"menagent/pkg/logger"

	"github.com/getlantern/systray"
)

// App is the system tray surface: status text plus pause/resume,
// disconnect and quit. Failures never surface as dialogs; status changes
// and log entries are the only user-visible signal.
type App struct {
	sched    *scheduler.Scheduler
	streamer *streaming.Manager
	client   *api.Client
	store    *auth.Store
	onExit   func()
}

// NewApp creates the tray application.
func NewApp(
	sched *scheduler.Scheduler,
	streamer *streaming.Manager,
	client *api.Client,
	store *auth.Store,
	onExit func(),
) *App {
	return &App{
		sched:    sched,
		streamer: streamer,
		client:   client,
		store:    store,
		onExit:   onExit,
	}
}

// Run starts the tray loop. Blocking.
func (a *App) Run() {
	systray.Run(a.onReady, a.onQuit)
}

func (a *App) onReady() {
	systray.SetIcon(defaultIcon)
	systray.SetTitle("MEN Agent")
	a.updateTooltip()

	mStatus := systray.AddMenuItem(a.statusLabel(), "Agent status")
	mStatus.Disable()

	systray.AddSeparator()
	mPause := systray.AddMenuItem("Pause Monitoring", "Suppress telemetry collection")
	mResume := systray.AddMenuItem("Resume Monitoring", "Resume telemetry collection")
	mResume.Hide()

	systray.AddSeparator()
	mDisconnect := systray.AddMenuItem("Disconnect", "Log out from the control server")
	mQuit := systray.AddMenuItem("Quit", "Exit MEN Agent")

	go func() {
		for {
			select {
			case <-mPause.ClickedCh:
				a.sched.PauseAll()
				mPause.Hide()
				mResume.Show()
				mStatus.SetTitle(a.statusLabel())
				a.updateTooltip()

			case <-mResume.ClickedCh:
				a.sched.ResumeAll()
				mResume.Hide()
				mPause.Show()
				mStatus.SetTitle(a.statusLabel())
				a.updateTooltip()

			case <-mDisconnect.ClickedCh:
				a.disconnect()
				mStatus.SetTitle(a.statusLabel())
				a.updateTooltip()

			case <-mQuit.ClickedCh:
				a.disconnect()
				systray.Quit()
				return
			}
		}
	}()
}

func (a *App) onQuit() {
	if a.sched.IsRunning() {
		a.sched.Stop()
	}
	if a.onExit != nil {
		a.onExit()
	}
	logger.Info("agent exited")
}

// disconnect performs the explicit logout sequence: stop all scheduling,
// end any live stream, then tell the server goodbye.
func (a *App) disconnect() {
	a.sched.Stop()
	a.streamer.StopCurrent()

	if err := a.store.SetConnected(false); err != nil {
		logger.Warn("failed to persist connect flag: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		logger.Error("disconnect failed: %v", err)
	}
}

func (a *App) statusLabel() string {
	switch {
	case a.sched.IsPaused():
		return "Status: Paused"
	case a.store.Connected():
		return "Status: Connected"
	default:
		return "Status: Disconnected"
	}
}

func (a *App) updateTooltip() {
	name := "Not Connected"
	if employee, ok := a.store.Employee(); ok && a.store.Connected() {
		name = employee.EmployeeName
	}
	systray.SetTooltip("MEN Agent - " + name)
}

// defaultIcon is a minimal 16x16 PNG used when no icon asset ships with
// the binary.
var defaultIcon = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x91, 0x68,
	0x36, 0x00, 0x00, 0x00, 0x19, 0x49, 0x44, 0x41,
	0x54, 0x28, 0x91, 0x63, 0x64, 0x60, 0xF8, 0x0F,
	0x04, 0x0C, 0x0C, 0x8C, 0x40, 0x06, 0x06, 0x46,
	0x20, 0x03, 0x03, 0x23, 0x00, 0x00, 0x0F, 0x70,
	0x01, 0x18, 0xE5, 0xD4, 0x8F, 0x4F, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42,
	0x60, 0x82,
}
