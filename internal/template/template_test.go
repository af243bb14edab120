package template

import "testing"

func TestRenderSubstitutesVars(t *testing.T) {
	got, err := Render("hello {{user}}", map[string]string{"user": "keron"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello keron" {
		t.Errorf("got %q, want %q", got, "hello keron")
	}
}

func TestRenderNoVars(t *testing.T) {
	got, err := Render("static text", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "static text" {
		t.Errorf("got %q, want %q", got, "static text")
	}
}

func TestRenderUnknownVarFails(t *testing.T) {
	_, err := Render("{{missing}}", map[string]string{"user": "keron"})
	if err == nil {
		t.Fatal("expected error for unbound template function")
	}
}
