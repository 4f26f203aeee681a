package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// formEditor хранит состояние открытой формы, пока игрок её заполняет.
type formEditor struct {
	id       string
	form     form.Decoded
	answer   *form.Response
	selected int
}

// newFormEditor открывает форму из FormRequest с предзаполненными значениями.
func newFormEditor(req *game.FormRequest) (*formEditor, error) {
	decoded, err := form.Decode(req.Form)
	if err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	return &formEditor{id: req.FormId, form: decoded, answer: decoded.Defaults()}, nil
}

func (f *formEditor) element() (form.DecodedElement, bool) {
	if f.selected < 0 || f.selected >= len(f.form.Content) {
		return form.DecodedElement{}, false
	}
	return f.form.Content[f.selected], true
}

// move переключает выделенный элемент.
func (f *formEditor) move(delta int) {
	n := len(f.form.Content)
	if n == 0 {
		return
	}
	f.selected = ((f.selected+delta)%n + n) % n
}

// cycle меняет значение dropdown или переключает toggle.
func (f *formEditor) cycle(delta int) {
	e, ok := f.element()
	if !ok {
		return
	}
	switch e.Type {
	case "dropdown":
		n := len(e.Options)
		if n == 0 {
			return
		}
		v := f.answer.Int(f.selected, 0)
		f.answer.Set(f.selected, ((v+delta)%n+n)%n)
	case "toggle":
		f.answer.Set(f.selected, !f.answer.Bool(f.selected, false))
	}
}

// typeRune дописывает символ в поле ввода.
func (f *formEditor) typeRune(ch rune) {
	if e, ok := f.element(); ok && e.Type == "input" {
		f.answer.Set(f.selected, f.answer.String(f.selected, "")+string(ch))
	}
}

// backspace стирает последний символ поля ввода.
func (f *formEditor) backspace() {
	e, ok := f.element()
	if !ok || e.Type != "input" {
		return
	}
	r := []rune(f.answer.String(f.selected, ""))
	if len(r) > 0 {
		f.answer.Set(f.selected, string(r[:len(r)-1]))
	}
}

// lines возвращает строки для отрисовки формы.
func (f *formEditor) lines() []string {
	out := []string{"== " + f.form.Title + " =="}
	for i, e := range f.form.Content {
		marker := "  "
		if i == f.selected {
			marker = "> "
		}
		var value string
		switch e.Type {
		case "input":
			value = f.answer.String(i, "")
			if value == "" && e.Placeholder != "" {
				value = "(" + e.Placeholder + ")"
			}
			value = "[" + value + "]"
		case "dropdown":
			idx := f.answer.Int(i, 0)
			opts := make([]string, len(e.Options))
			for j, o := range e.Options {
				if j == idx {
					o = "<" + o + ">"
				}
				opts[j] = o
			}
			value = strings.Join(opts, " ")
		case "toggle":
			value = "[ ]"
			if f.answer.Bool(i, false) {
				value = "[x]"
			}
		}
		out = append(out, fmt.Sprintf("%s%s %s", marker, e.Text, value))
	}
	out = append(out, "Tab/стрелки - поле, ←/→/Space - значение, Enter - отправить, Esc - закрыть")
	return out
}

// submit формирует ответ на форму.
func (f *formEditor) submit() *game.ClientMessage {
	data, err := json.Marshal(f.answer)
	if err != nil {
		return f.cancel()
	}
	return &game.ClientMessage{FormResponse: &game.FormResponse{FormId: f.id, Data: data}}
}

// cancel закрывает форму без ответа.
func (f *formEditor) cancel() *game.ClientMessage {
	return &game.ClientMessage{FormResponse: &game.FormResponse{FormId: f.id, Cancelled: true}}
}
