package console

type ViewState int

const (
	Loaded ViewState = iota
	Loading
	Failed
)

func (s ViewState) String() string {

	var str string
	switch s {
	case Loaded:
		str = "Loaded"
	case Loading:
		str = "Loading"
	case Failed:
		str = "Failed"
	}

	return str
}

// Loading -> Loading happens when a new fetch supersedes one in flight.
var viewTransitionMap = map[ViewState][]ViewState{
	Loaded:  {Loading},
	Loading: {Loading, Loaded, Failed},
	Failed:  {Loading},
}

func Contains(states []ViewState, state ViewState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}

	return false
}

func ValidViewTransition(src ViewState, dst ViewState) bool {
	return Contains(viewTransitionMap[src], dst)
}

type FormMode int

const (
	Closed FormMode = iota
	Creating
	Editing
)

func (m FormMode) String() string {

	var str string
	switch m {
	case Closed:
		str = "Closed"
	case Creating:
		str = "Creating"
	case Editing:
		str = "Editing"
	}

	return str
}
