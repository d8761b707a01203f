package telegram

import (
	"errors"
	"testing"

	"github.com/m3rciful/catalogbot/core/telegram/callbacks"
	"github.com/m3rciful/catalogbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Main menu"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	cases := []struct {
		name string
		cmd  commands.Command
		want error
	}{
		{"/start", commands.Command{Handler: noop, Description: "again"}, ErrDuplicate},
		{"start", commands.Command{Handler: noop, Description: "no slash"}, ErrInvalidRegistration},
		{"/help", commands.Command{Description: "no handler"}, ErrInvalidRegistration},
		{"/help", commands.Command{Handler: noop, Description: " "}, ErrInvalidRegistration},
	}
	for _, tc := range cases {
		if err := r.RegisterCommand(tc.name, tc.cmd); !errors.Is(err, tc.want) {
			t.Fatalf("RegisterCommand(%q) = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestLookupCommandAliases(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterCommand("/catalog", commands.Command{Handler: noop, Description: "Browse", Aliases: []string{"menu"}})

	for _, in := range []string{"/catalog", "catalog", " menu ", "/menu"} {
		key, _, ok := r.LookupCommand(in)
		if !ok || key != "/catalog" {
			t.Fatalf("LookupCommand(%q) = %q, %v", in, key, ok)
		}
	}
	if _, _, ok := r.LookupCommand("hello"); ok {
		t.Fatal("unexpected match")
	}
}

func TestListCommandsHidesAdminAndHidden(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true})
	_ = r.RegisterCommand("/help", commands.Command{Handler: noop, Description: "Help"})
	_ = r.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true})
	_ = r.RegisterCommand("/catalog", commands.Command{Handler: noop, Description: "Browse"})

	visible := r.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "/catalog" || visible[1].Text != "/help" {
		t.Fatalf("visible = %v", visible)
	}
	if all := r.ListCommands(false); len(all) != 4 {
		t.Fatalf("all = %v", all)
	}
}

func TestRegisterAction(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterAction(callbacks.MainMenu, noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.RegisterAction(callbacks.MainMenu, noop); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate = %v", err)
	}
	if err := r.RegisterAction(callbacks.Type("bogus"), noop); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("unknown type = %v", err)
	}
	if err := r.RegisterAction(callbacks.Back, nil); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("nil handler = %v", err)
	}
	if _, ok := r.Action(callbacks.MainMenu); !ok {
		t.Fatal("action not bound")
	}
	if got := r.ListActions(); len(got) != 1 || got[0] != string(callbacks.MainMenu) {
		t.Fatalf("actions = %v", got)
	}
}

func TestSetCallbackNotFoundIgnoresNil(t *testing.T) {
	r := NewRegistry()
	r.SetCallbackNotFound(nil)
	if r.CallbackNotFound() == nil {
		t.Fatal("default fallback dropped")
	}
}
