// Package collapsed implements the folded-stacks format consumed by flame
// graph tooling: one line per call path, frames joined by semicolons, with
// the sample weight last.
package collapsed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type Sample struct {
	Stack []string
	Value int64
}

type Profile struct {
	Samples []Sample
}

func Decode(r io.Reader) (*Profile, error) {
	res := &Profile{
		Samples: make([]Sample, 0),
	}

	line := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		idx := strings.LastIndexByte(text, ' ')
		if idx == -1 {
			return nil, fmt.Errorf("collapsed: line %d: no sample weight", line)
		}
		value, err := strconv.ParseInt(text[idx+1:], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("collapsed: line %d: %w", line, err)
		}
		res.Samples = append(res.Samples, Sample{
			Stack: strings.Split(text[:idx], ";"),
			Value: value,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("collapsed: read: %w", err)
	}

	return res, nil
}

func Encode(profile *Profile, w io.Writer) error {
	for _, sample := range profile.Samples {
		_, err := fmt.Fprintf(w, "%s %d\n", strings.Join(sample.Stack, ";"), sample.Value)
		if err != nil {
			return err
		}
	}
	return nil
}

func Unmarshal(buf []byte) (*Profile, error) {
	return Decode(bytes.NewBuffer(buf))
}

func Marshal(profile *Profile) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := Encode(profile, buf)
	return buf.Bytes(), err
}
