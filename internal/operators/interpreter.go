package operators

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/pkg/domain"
)

// Result tells the controller what to do after an operator ran.
type Result struct {
	// Exit ends the run.
	Exit bool
	// Wait is set when the wait operator has not elapsed yet. The node must be
	// performed again after the delay.
	Wait time.Duration
}

// Interpreter performs operator nodes against a variable store.
type Interpreter struct {
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	checkpoints map[string]time.Time
}

// Option configures the Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger used for soft failures.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) {
		i.now = now
	}
}

// New creates an interpreter.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		logger:      logging.NewNop(),
		now:         time.Now,
		checkpoints: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Perform runs one operator. node is the operator's node name, used for error
// reporting and as the key of in-memory wait checkpoints. Failures are
// returned as *domain.OperatorError; the output variable is left untouched.
func (i *Interpreter) Perform(ctx context.Context, node string, op domain.Operator, vars *domain.VariableStore) (Result, error) {
	fail := func(err error) (Result, error) {
		return Result{}, &domain.OperatorError{Node: node, Kind: op.Kind, Err: err}
	}
	if err := op.Check(); err != nil {
		return fail(err)
	}

	switch op.Kind {
	case domain.OpExit:
		return Result{Exit: true}, nil

	case domain.OpWaitSinceLastTime:
		wait, err := i.waitSinceLastTime(node, op, vars)
		if err != nil {
			return fail(err)
		}
		return Result{Wait: wait}, nil

	case domain.OpBoolFileExists,
		domain.OpStringTouchFile, domain.OpStringCopyFile,
		domain.OpStringMoveFile, domain.OpStringDeleteFile:
		val, err := i.performFile(op, vars)
		if err != nil {
			return fail(err)
		}
		if !val.IsZero() {
			if err := store(vars, op.Output, val); err != nil {
				return fail(err)
			}
		}
		return Result{}, nil
	}

	val, err := evaluate(op, vars)
	if err != nil {
		return fail(err)
	}
	if err := store(vars, op.Output, val); err != nil {
		return fail(err)
	}
	return Result{}, nil
}

func store(vars *domain.VariableStore, output string, val domain.Value) error {
	if output == domain.Undefined || output == "" {
		return nil
	}
	return vars.Set(output, val)
}

// evaluate computes the boolean and float instructions.
func evaluate(op domain.Operator, vars *domain.VariableStore) (domain.Value, error) {
	switch op.Kind {
	case domain.OpBoolAnd, domain.OpBoolOr:
		a, err := resolveBool(vars, op.Input1)
		if err != nil {
			return domain.Value{}, err
		}
		b, err := resolveBool(vars, op.Input2)
		if err != nil {
			return domain.Value{}, err
		}
		if op.Kind == domain.OpBoolAnd {
			return domain.BoolValue(a && b), nil
		}
		return domain.BoolValue(a || b), nil

	case domain.OpBoolNot:
		a, err := resolveBool(vars, op.Input1)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.BoolValue(!a), nil
	}

	a, err := resolveFloat(vars, op.Input1)
	if err != nil {
		return domain.Value{}, err
	}
	b, err := resolveFloat(vars, op.Input2)
	if err != nil {
		return domain.Value{}, err
	}

	switch op.Kind {
	case domain.OpBoolGtVar, domain.OpBoolGtConst:
		return domain.BoolValue(a > b), nil
	case domain.OpBoolLtVar, domain.OpBoolLtConst:
		return domain.BoolValue(a < b), nil
	case domain.OpBoolEqVar, domain.OpBoolEqConst:
		return domain.BoolValue(a == b), nil
	case domain.OpFloatPlusVar, domain.OpFloatPlusConst:
		return finite(a+b, a, "+", b)
	case domain.OpFloatMinusVar, domain.OpFloatMinusConst:
		return finite(a-b, a, "-", b)
	case domain.OpFloatMultVar, domain.OpFloatMultConst:
		return finite(a*b, a, "*", b)
	case domain.OpFloatDivideVar, domain.OpFloatDivideConst:
		return divide(a, b)
	case domain.OpFloatConstDivide:
		// input2 is the constant numerator, input1 the divisor.
		return divide(b, a)
	}
	return domain.Value{}, fmt.Errorf("%w: %s is not evaluable", domain.ErrInvalidOperator, op.Kind)
}

func divide(num, den float64) (domain.Value, error) {
	if den == 0 {
		return domain.Value{}, domain.ErrDivisionByZero
	}
	return finite(num/den, num, "/", den)
}

func finite(result, a float64, symbol string, b float64) (domain.Value, error) {
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return domain.Value{}, fmt.Errorf("%w: %g %s %g", domain.ErrOverflow, a, symbol, b)
	}
	return domain.FloatValue(result), nil
}

// waitSinceLastTime returns how long the node still has to wait. When the
// interval has elapsed the checkpoint moves to now. The first pass never
// waits.
func (i *Interpreter) waitSinceLastTime(node string, op domain.Operator, vars *domain.VariableStore) (time.Duration, error) {
	seconds, err := resolveFloat(vars, op.Input1)
	if err != nil {
		return 0, err
	}
	interval := time.Duration(seconds * float64(time.Second))
	now := i.now()

	last, ok, err := i.checkpoint(node, op.Output, vars)
	if err != nil {
		return 0, err
	}
	if ok {
		if remaining := interval - now.Sub(last); remaining > 0 {
			return remaining, nil
		}
	}
	return 0, i.setCheckpoint(node, op.Output, vars, now)
}

func (i *Interpreter) checkpoint(node, output string, vars *domain.VariableStore) (time.Time, bool, error) {
	if output != domain.Undefined && output != "" && vars.Has(output) {
		secs, err := vars.GetFloat(output)
		if err != nil {
			return time.Time{}, false, err
		}
		if secs <= 0 {
			return time.Time{}, false, nil
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*float64(time.Second))), true, nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	last, ok := i.checkpoints[node]
	return last, ok, nil
}

func (i *Interpreter) setCheckpoint(node, output string, vars *domain.VariableStore, now time.Time) error {
	if output != domain.Undefined && output != "" {
		return vars.SetFloat(output, float64(now.UnixNano())/float64(time.Second))
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.checkpoints[node] = now
	return nil
}

// ForgetCheckpoints drops the in-memory wait checkpoints of every node.
func (i *Interpreter) ForgetCheckpoints() {
	i.mu.Lock()
	defer i.mu.Unlock()
	clear(i.checkpoints)
}
