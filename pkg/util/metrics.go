package util

import "time"

func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}

// TimeDecode runs op and reports how long it took in microseconds along with its error.
func TimeDecode(op func() error) (int64, error) {
	var err error
	us := TimeOperationMicroseconds(func() {
		err = op()
	})
	return us, err
}
