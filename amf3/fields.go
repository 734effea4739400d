package amf3

import (
	"reflect"
	"sort"
	"strings"

	"github.com/ergo-services/amf3/lib"
)

// Field is a named value of an object.
type Field struct {
	Name  string
	Value Value
}

// FieldEnumerator lists the fields of a value the Encoder has no built-in
// representation for. The fields are written as a dynamic anonymous object.
type FieldEnumerator func(v reflect.Value) ([]Field, error)

type fieldPlan struct {
	name      string
	index     []int
	omitEmpty bool
	tagged    bool
}

// cached per type, plans never change once built
var fieldPlans lib.Map[reflect.Type, []fieldPlan]

// ReflectFields is the default FieldEnumerator. It lists the exported fields
// of a struct in declaration order. The name of a field is taken from the
// "amf" tag, then from the "json" tag, then from the field itself. The name
// "-" skips the field, the "omitempty" option skips zero values. Fields of
// embedded structs are listed as if they were fields of the outer struct.
// Names collide the way they do for Go selectors: the shallowest field wins,
// a tagged one wins among the same depth, otherwise the name is dropped.
func ReflectFields(v reflect.Value) ([]Field, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, errUnsupported("can not list fields of %s", v.Type())
	}

	plan, err := fieldPlans.LoadOrCompute(v.Type(), func() ([]fieldPlan, error) {
		return buildFieldPlan(v.Type()), nil
	})
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(plan))
	for _, p := range plan {
		fv, ok := fieldByIndex(v, p.index)
		if ok == false {
			continue
		}
		if p.omitEmpty && fv.IsZero() {
			continue
		}
		fields = append(fields, Field{Name: p.name, Value: fv.Interface()})
	}
	return fields, nil
}

type embedded struct {
	t     reflect.Type
	index []int
}

func buildFieldPlan(t reflect.Type) []fieldPlan {
	var candidates []fieldPlan

	// walk the embedded structs level by level. a type seen on a shallower
	// level is not walked again, so self embedding ends
	visited := make(map[reflect.Type]bool)
	current := []embedded{{t: t}}
	for len(current) > 0 {
		var next []embedded
		for _, e := range current {
			if visited[e.t] {
				continue
			}
			candidates, next = appendFields(candidates, next, e)
		}
		for _, e := range current {
			visited[e.t] = true
		}
		current = next
	}

	byName := make(map[string][]fieldPlan)
	for _, c := range candidates {
		byName[c.name] = append(byName[c.name], c)
	}

	plan := make([]fieldPlan, 0, len(byName))
	for _, c := range candidates {
		group := byName[c.name]
		if group == nil {
			// already resolved
			continue
		}
		delete(byName, c.name)
		if winner, ok := dominantField(group); ok {
			plan = append(plan, winner)
		}
	}

	sort.Slice(plan, func(i, j int) bool {
		return indexLess(plan[i].index, plan[j].index)
	})
	return plan
}

func appendFields(candidates []fieldPlan, next []embedded, e embedded) ([]fieldPlan, []embedded) {
	for i := 0; i < e.t.NumField(); i++ {
		f := e.t.Field(i)
		name, omitEmpty := fieldTag(f)
		if name == "-" {
			continue
		}

		index := make([]int, len(e.index)+1)
		copy(index, e.index)
		index[len(e.index)] = i

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				next = append(next, embedded{t: ft, index: index})
				continue
			}
		}

		if f.PkgPath != "" {
			// unexported
			continue
		}
		tagged := name != ""
		if tagged == false {
			name = f.Name
		}
		candidates = append(candidates, fieldPlan{
			name:      name,
			index:     index,
			omitEmpty: omitEmpty,
			tagged:    tagged,
		})
	}
	return candidates, next
}

// dominantField picks the field a name refers to. Returns false if the name
// is ambiguous.
func dominantField(group []fieldPlan) (fieldPlan, bool) {
	depth := len(group[0].index)
	for _, f := range group[1:] {
		if len(f.index) < depth {
			depth = len(f.index)
		}
	}

	var shallow, tagged []fieldPlan
	for _, f := range group {
		if len(f.index) != depth {
			continue
		}
		shallow = append(shallow, f)
		if f.tagged {
			tagged = append(tagged, f)
		}
	}

	switch {
	case len(shallow) == 1:
		return shallow[0], true
	case len(tagged) == 1:
		return tagged[0], true
	}
	return fieldPlan{}, false
}

func indexLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func fieldTag(f reflect.StructField) (string, bool) {
	tag, found := f.Tag.Lookup("amf")
	if found == false {
		tag = f.Tag.Get("json")
	}
	split := strings.Split(tag, ",")
	omitEmpty := false
	for _, option := range split[1:] {
		if option == "omitempty" {
			omitEmpty = true
		}
	}
	return split[0], omitEmpty
}

func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
