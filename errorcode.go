package relay

import "strconv"

type ErrorCode int

const (
	ERROR_ACCEPT           ErrorCode = 1
	ERROR_ADD_CONNECTION   ErrorCode = 2
	ERROR_CLOSE_CONNECTION ErrorCode = 3
	ERROR_READ             ErrorCode = 4
	ERROR_EPOLL_WAIT       ErrorCode = 5
	ERROR_STOP             ErrorCode = 6
	ERROR_POOL_BUFFER      ErrorCode = 7
	ERROR_WRITE            ErrorCode = 8
	ERROR_POLL             ErrorCode = 9
	ERROR_FRAME            ErrorCode = 10
	ERROR_TASK_PANIC       ErrorCode = 11
	ERROR_IDLE_TIMEOUT     ErrorCode = 12
	ERROR_SUBMIT           ErrorCode = 13
)

var errorCodeNames = map[ErrorCode]string{
	ERROR_ACCEPT:           "accept",
	ERROR_ADD_CONNECTION:   "add_connection",
	ERROR_CLOSE_CONNECTION: "close_connection",
	ERROR_READ:             "read",
	ERROR_EPOLL_WAIT:       "epoll_wait",
	ERROR_STOP:             "stop",
	ERROR_POOL_BUFFER:      "pool_buffer",
	ERROR_WRITE:            "write",
	ERROR_POLL:             "poll",
	ERROR_FRAME:            "frame",
	ERROR_TASK_PANIC:       "task_panic",
	ERROR_IDLE_TIMEOUT:     "idle_timeout",
	ERROR_SUBMIT:           "submit",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "error_" + strconv.Itoa(int(c))
}
