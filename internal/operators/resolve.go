package operators

import (
	"fmt"
	"os"

	"github.com/aretw0/sluice/pkg/domain"
)

// resolve reads a slot as a variable of kind, or parses it as a literal when
// no variable has that name.
func resolve(vars *domain.VariableStore, slot string, kind domain.Kind) (domain.Value, error) {
	if vars.Has(slot) {
		return vars.Get(slot, kind)
	}
	val, err := domain.ParseValue(kind, slot)
	if err != nil {
		return domain.Value{}, fmt.Errorf("%w: '%s' is neither a variable nor a %s literal",
			domain.ErrVariableNotFound, slot, kind)
	}
	return val, nil
}

func resolveFloat(vars *domain.VariableStore, slot string) (float64, error) {
	val, err := resolve(vars, slot, domain.KindFloat)
	if err != nil {
		return 0, err
	}
	return val.AsFloat()
}

func resolveBool(vars *domain.VariableStore, slot string) (bool, error) {
	val, err := resolve(vars, slot, domain.KindBool)
	if err != nil {
		return false, err
	}
	return val.AsBool()
}

// resolvePath returns the path named by a slot. A slot naming a string
// variable yields its value; ${name} references inside the result are then
// replaced by the current value of any variable.
func resolvePath(vars *domain.VariableStore, slot string) (string, error) {
	path, err := resolve(vars, slot, domain.KindString)
	if err != nil {
		return "", err
	}
	text, _ := path.AsString()

	var missing []string
	expanded := os.Expand(text, func(name string) string {
		v, ok := vars.Lookup(name)
		if !ok {
			missing = append(missing, name)
			return ""
		}
		return v.Current.String()
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: path '%s' references %v", domain.ErrVariableNotFound, text, missing)
	}
	return expanded, nil
}
