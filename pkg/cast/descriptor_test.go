package cast

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDescriptor_RequiredAbsentReportsPath(t *testing.T) {
	d := Field(String).At("user.name").Require()

	_, _, err := d.Resolve(map[string]any{"user": map[string]any{}})
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ce.Reason != ReasonRequired {
		t.Errorf("reason = %q", ce.Reason)
	}
	if ce.Path.String() != "user.name" {
		t.Errorf("path = %q, want user.name", ce.Path)
	}
}

func TestDescriptor_DefaultIsCopied(t *testing.T) {
	d := Field(Array).At("tags").WithDefault([]any{"a", map[string]any{"k": "v"}})

	first, ok, err := d.Resolve(map[string]any{})
	if err != nil || !ok {
		t.Fatalf("expected default, got ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(first, []any{"a", map[string]any{"k": "v"}}) {
		t.Fatalf("unexpected default: %#v", first)
	}

	first.([]any)[0] = "mutated"
	first.([]any)[1].(map[string]any)["k"] = "mutated"

	second, _, _ := d.Resolve(map[string]any{})
	if !reflect.DeepEqual(second, []any{"a", map[string]any{"k": "v"}}) {
		t.Errorf("stored default was mutated: %#v", second)
	}
}

func TestDescriptor_RecordDefaultIsCopied(t *testing.T) {
	def := Define("Paging").
		Field("limit", Field(Number).WithDefault(10)).
		Field("sort", Field(Array))
	stored, err := Build(def, map[string]any{"sort": []any{"name"}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	d := Field(def).At("paging").WithDefault(stored)

	first, ok, err := d.Resolve(map[string]any{})
	if err != nil || !ok {
		t.Fatalf("expected default, got ok=%v err=%v", ok, err)
	}
	rec := first.(*Record)
	if rec == stored {
		t.Fatal("default record handed out by reference")
	}
	rec.Set("secret", "tok-1")
	sort, _ := rec.Get("sort")
	sort.([]any)[0] = "mutated"

	if stored.Has("secret") {
		t.Errorf("stored default gained a field: %v", stored.Keys())
	}
	if v, _ := stored.Get("sort"); !reflect.DeepEqual(v, []any{"name"}) {
		t.Errorf("stored default member was mutated: %#v", v)
	}
	if rec.Definition() != def {
		t.Error("clone should keep its definition")
	}
}

func TestDescriptor_DefaultFunc(t *testing.T) {
	n := 0
	d := Field(Number).At("seq").WithDefaultFunc(func() any { n++; return n })

	v1, _, _ := d.Resolve(map[string]any{})
	v2, _, _ := d.Resolve(map[string]any{})
	if v1 != 1 || v2 != 2 {
		t.Errorf("expected factory per call, got %v, %v", v1, v2)
	}
}

func TestDescriptor_NullHandling(t *testing.T) {
	input := map[string]any{"v": nil}

	v, ok, err := Field(String).At("v").AllowNull().Resolve(input)
	if err != nil || !ok || v != nil {
		t.Errorf("nullable: got %#v, %v, %v", v, ok, err)
	}

	_, ok, err = Field(String).At("v").Require().Resolve(input)
	if err != nil || ok {
		t.Errorf("non-nullable null should be discarded without error, got ok=%v err=%v", ok, err)
	}
}

func TestDescriptor_ArrayWrapsScalar(t *testing.T) {
	v, ok, err := Field(Number).At("ids").Array().Resolve(map[string]any{"ids": "7"})
	if err != nil || !ok {
		t.Fatalf("unexpected: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(v, []any{float64(7)}) {
		t.Errorf("expected [7], got %#v", v)
	}
}

func TestDescriptor_ArrayElementFailureCarriesIndex(t *testing.T) {
	_, _, err := Field(Number).At("ids").Array().Resolve(map[string]any{"ids": []any{1, "x"}})
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ce.Path.String() != "ids[1]" {
		t.Errorf("path = %q, want ids[1]", ce.Path)
	}
}

func TestDescriptor_ArrayNullMembers(t *testing.T) {
	input := map[string]any{"xs": []any{"a", nil}}

	if _, _, err := Field(String).At("xs").Array().Resolve(input); err == nil {
		t.Error("expected null member to be rejected")
	}
	v, _, err := Field(String).At("xs").Array().AllowNullMembers().Resolve(input)
	if err != nil || !reflect.DeepEqual(v, []any{"a", nil}) {
		t.Errorf("expected null member kept, got %#v, %v", v, err)
	}
}

func TestDescriptor_MemberThenCollectionValidators(t *testing.T) {
	var order []string
	d := Field(Number).At("xs").Array().
		Check(Predicate("positive", func(v, _ any) bool {
			order = append(order, "member")
			return v.(float64) > 0
		})).
		CheckCollection(Predicate("short", func(v, _ any) bool {
			order = append(order, "collection")
			return len(v.([]any)) <= 3
		}))

	if _, _, err := d.Resolve(map[string]any{"xs": []any{1, 2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"member", "member", "collection"}) {
		t.Errorf("validator order = %v", order)
	}

	_, _, err := d.Resolve(map[string]any{"xs": []any{1, 2, 3, 4}})
	var ce *Error
	if !errors.As(err, &ce) || ce.Validator != "short" {
		t.Errorf("expected collection validator failure, got %v", err)
	}
}

func TestDescriptor_DictCastsEveryValue(t *testing.T) {
	d := Field(Number).At("scores").Dict()

	v, _, err := d.Resolve(map[string]any{"scores": map[string]any{"a": "1", "b": 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(v, map[string]any{"a": float64(1), "b": float64(2)}) {
		t.Errorf("got %#v", v)
	}

	_, _, err = d.Resolve(map[string]any{"scores": map[string]any{"a": 1, "b": "x"}})
	var ce *Error
	if !errors.As(err, &ce) || ce.Path.String() != "scores.b" {
		t.Errorf("expected failure at scores.b, got %v", err)
	}

	_, _, err = d.Resolve(map[string]any{"scores": 3})
	if !errors.As(err, &ce) || ce.Reason != ReasonNotDict {
		t.Errorf("expected not-a-dict failure, got %v", err)
	}
}

func namedCheck(v, _ any) error {
	return errors.New("never")
}

func TestValidator_ThreeFailureStylesNameTheValidator(t *testing.T) {
	tests := []struct {
		name     string
		v        Validator
		wantName string
	}{
		{"false", Predicate("isShort", func(v, _ any) bool { return false }), "isShort"},
		{"error", Rule("noBob", func(v, _ any) error { return errors.New("bob is banned") }), "noBob"},
		{"panic", Rule("explodes", func(v, _ any) error { panic("kaboom") }), "explodes"},
		{"anonymous", Validator{Check: namedCheck}, "cast.namedCheck"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Field(String).At("who").Check(tt.v).Resolve(map[string]any{"who": "bob"})
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if ce.Validator != tt.wantName {
				t.Errorf("validator = %q, want %q", ce.Validator, tt.wantName)
			}
			if ce.Value != "bob" {
				t.Errorf("value = %#v, want bob", ce.Value)
			}
			if !strings.Contains(ce.Error(), tt.wantName) {
				t.Errorf("message should name the validator: %s", ce.Error())
			}
		})
	}
}

func TestTag_UsesValidatorTags(t *testing.T) {
	d := Field(String).At("email").Check(Tag("email"))

	if _, _, err := d.Resolve(map[string]any{"email": "a@example.com"}); err != nil {
		t.Errorf("valid email rejected: %v", err)
	}
	_, _, err := d.Resolve(map[string]any{"email": "nope"})
	var ce *Error
	if !errors.As(err, &ce) || ce.Validator != "tag:email" {
		t.Errorf("expected tag validator failure, got %v", err)
	}

	n := Field(Number).At("n").Check(Tag("gte=1,lte=10"))
	if _, _, err := n.Resolve(map[string]any{"n": "11"}); err == nil {
		t.Error("expected 11 to exceed lte=10")
	}
}

func TestField_PanicsWithoutTypes(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Field()
}

func TestDescriptor_CloneIsIndependent(t *testing.T) {
	base := Field(String).At("a").Check(Tag("min=1"))
	c := base.Clone().At("b").Check(Tag("max=3"))

	if base.Path.String() != "a" || len(base.Validators) != 1 {
		t.Errorf("clone changed the original: path=%s validators=%d", base.Path, len(base.Validators))
	}
	if c.Path.String() != "b" || len(c.Validators) != 2 {
		t.Errorf("clone not updated: path=%s validators=%d", c.Path, len(c.Validators))
	}
}
