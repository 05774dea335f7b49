package server

type serverError string

func (e serverError) Error() string {
	return string(e)
}

const (
	ErrBind        = serverError("bind failed")
	ErrWorkerCount = serverError("worker count must be at least 1")
	ErrListener    = serverError("listener closed unexpectedly")
	ErrSplit       = serverError("error while splitting connection")
	ErrEcho        = serverError("error while echoing bytes")
)
