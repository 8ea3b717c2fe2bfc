package must

// Must panics if err is not nil. Reserve it for errors that are impossible
// unless the program itself is wrong, such as misspelled flag names.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}
