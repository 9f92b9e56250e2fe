// Package tui renders the chat screen: a scrollable message view over an
// input line. It consumes display events and hands submitted lines to the
// session core; everything protocol- or crypto-related stays outside.
package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"lockchat/internal/model"
	"lockchat/internal/utils/log"
)

type (
	UI struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		send func(string) error
	}
)

// New builds the chat screen. send is invoked off the UI goroutine for every
// submitted line.
func New(title string, send func(string) error) *UI {
	u := &UI{
		app:  tview.NewApplication(),
		send: send,
	}

	u.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	u.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", title))

	u.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	u.input.SetBorder(true).SetTitle(" New Message ")

	u.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := u.input.GetText()
		if text == "" {
			return
		}
		u.input.SetText("")

		go func(msg string) {
			if err := u.send(msg); err != nil {
				log.Error("send message failed", zap.Error(err))
				u.app.QueueUpdateDraw(func() {
					fmt.Fprintf(u.chatbox, "[red]!:[-] could not send: %v\n", err)
					u.chatbox.ScrollToEnd()
				})
				return
			}
			u.app.QueueUpdateDraw(func() {
				fmt.Fprintf(u.chatbox, "[yellow]You:[-] %s\n", msg)
				u.chatbox.ScrollToEnd()
			})
		}(text)
	})

	return u
}

// Run consumes events and blocks in the tview main loop until the user quits
// (Esc or Ctrl-C).
func (u *UI) Run(events <-chan model.Event) error {
	u.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape {
			u.app.Stop()
			return nil
		}
		return ev
	})

	go func() {
		for ev := range events {
			ev := ev
			u.app.QueueUpdateDraw(func() {
				u.render(ev)
			})
		}
	}()

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.chatbox, 0, 1, false).
		AddItem(u.input, 3, 0, true)

	return u.app.SetRoot(layout, true).SetFocus(u.input).Run()
}

func (u *UI) render(ev model.Event) {
	stamp := ev.Time.Format("15:04")
	switch ev.Kind {
	case model.KindMessage:
		fmt.Fprintf(u.chatbox, "[gray]%s[-] [green]%s:[-] %s\n", stamp, tview.Escape(ev.Sender), tview.Escape(ev.Text))
	case model.KindSystem:
		fmt.Fprintf(u.chatbox, "[gray]%s[-] [aqua]%s[-]\n", stamp, tview.Escape(ev.Text))
	case model.KindError:
		fmt.Fprintf(u.chatbox, "[gray]%s[-] [red]%s[-]\n", stamp, tview.Escape(ev.Text))
	case model.KindDisconnect:
		fmt.Fprintf(u.chatbox, "[gray]%s[-] [red]%s[-]\n", stamp, tview.Escape(ev.Text))
	}
	u.chatbox.ScrollToEnd()
}
