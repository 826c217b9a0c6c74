// Package retry runs an action until it succeeds or a strategy gives up.
package retry

// Action is a unit of work that may be retried.
type Action func() error

// Retrier runs actions against a fixed set of strategies.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier bound to strategies. With no strategies, the
// action is retried until it succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{strategies: strategies}
}

func (r *retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

// Retry runs action until it returns nil or a strategy declines another
// attempt. It returns the number of attempts made and the last error.
//
// Strategies are consulted in order and evaluation stops at the first one
// that declines, so strategies that sleep belong at the end.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil {
			return attempts, nil
		}

		for _, strategy := range strategies {
			if !strategy(attempts, err) {
				return attempts, err
			}
		}
	}
}
