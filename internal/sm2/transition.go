package sm2

import "fmt"

// transition names the case a review falls into. Cases are evaluated in
// declaration order: a failure always wins, then the previous repetition
// count picks the success branch.
type transition int

const (
	failure transition = iota
	firstSuccess
	secondSuccess
	matureSuccess
)

var transitionNames = [...]string{
	failure:       "failure",
	firstSuccess:  "first-success",
	secondSuccess: "second-success",
	matureSuccess: "mature-success",
}

func (t transition) String() string {
	if t >= 0 && int(t) < len(transitionNames) {
		return transitionNames[t]
	}
	return fmt.Sprintf("transition(%d)", int(t))
}

func classify(previous *RetentionCard, successful bool) transition {
	switch {
	case !successful:
		return failure
	case previous == nil || previous.Repetitions <= 0:
		return firstSuccess
	case previous.Repetitions == 1:
		return secondSuccess
	default:
		return matureSuccess
	}
}
