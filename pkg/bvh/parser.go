package bvh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

type tokenizer struct {
	tokens []string
	pos    int
}

func newTokenizer(r io.Reader) (*tokenizer, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	t := &tokenizer{}
	for sc.Scan() {
		t.tokens = append(t.tokens, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tokenizer) next() (string, error) {
	if t.pos >= len(t.tokens) {
		return "", fmt.Errorf("%w: unexpected end of input", ErrMalformed)
	}
	tok := t.tokens[t.pos]
	t.pos++
	return tok, nil
}

func (t *tokenizer) expect(want string) error {
	tok, err := t.next()
	if err != nil {
		return err
	}
	if !strings.EqualFold(tok, want) {
		return fmt.Errorf("%w: expected %q, got %q", ErrMalformed, want, tok)
	}
	return nil
}

func (t *tokenizer) float() (float64, error) {
	tok, err := t.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrMalformed, tok)
	}
	return v, nil
}

func (t *tokenizer) int() (int, error) {
	tok, err := t.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer %q", ErrMalformed, tok)
	}
	return v, nil
}

func (t *tokenizer) vec() (r3.Vec, error) {
	var v [3]float64
	for i := range v {
		f, err := t.float()
		if err != nil {
			return r3.Vec{}, err
		}
		v[i] = f
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Parse reads a BVH document. name identifies the clip in logs and errors.
func Parse(name string, r io.Reader) (*Clip, error) {
	t, err := newTokenizer(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if err := t.expect("HIERARCHY"); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := t.expect("ROOT"); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	var joints []Joint
	if err := parseJoint(t, -1, &joints); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	frameCount, frameTime, err := parseMotionHeader(t)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	channels := 0
	for _, j := range joints {
		channels += len(j.Channels)
	}
	if remaining := len(t.tokens) - t.pos; remaining < frameCount*channels {
		return nil, fmt.Errorf("parse %s: %w: want %d values for %d frames, got %d",
			name, ErrMalformed, frameCount*channels, frameCount, remaining)
	}

	raw := make([][]float64, frameCount)
	for f := range raw {
		raw[f] = make([]float64, channels)
		for c := range raw[f] {
			if raw[f][c], err = t.float(); err != nil {
				return nil, fmt.Errorf("parse %s frame %d: %w", name, f, err)
			}
		}
	}

	return newClip(name, joints, frameTime, raw), nil
}

func parseJoint(t *tokenizer, parent int, joints *[]Joint) error {
	name, err := t.next()
	if err != nil {
		return err
	}
	if err := t.expect("{"); err != nil {
		return err
	}
	if err := t.expect("OFFSET"); err != nil {
		return err
	}
	offset, err := t.vec()
	if err != nil {
		return err
	}

	joint := Joint{Name: name, Parent: parent, Offset: offset}

	tok, err := t.next()
	if err != nil {
		return err
	}
	if strings.EqualFold(tok, "CHANNELS") {
		n, err := t.int()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			s, err := t.next()
			if err != nil {
				return err
			}
			ch, ok := parseChannel(s)
			if !ok {
				return fmt.Errorf("%w: joint %q has unknown channel %q", ErrMalformed, name, s)
			}
			joint.Channels = append(joint.Channels, ch)
		}
		if tok, err = t.next(); err != nil {
			return err
		}
	}

	index := len(*joints)
	*joints = append(*joints, joint)

	for {
		switch strings.ToUpper(tok) {
		case "}":
			return nil
		case "JOINT":
			if err := parseJoint(t, index, joints); err != nil {
				return err
			}
		case "END":
			site, err := parseEndSite(t)
			if err != nil {
				return err
			}
			(*joints)[index].EndSite = &site
		default:
			return fmt.Errorf("%w: unexpected %q in joint %q", ErrMalformed, tok, name)
		}
		if tok, err = t.next(); err != nil {
			return err
		}
	}
}

func parseEndSite(t *tokenizer) (r3.Vec, error) {
	for _, want := range []string{"Site", "{", "OFFSET"} {
		if err := t.expect(want); err != nil {
			return r3.Vec{}, err
		}
	}
	v, err := t.vec()
	if err != nil {
		return r3.Vec{}, err
	}
	return v, t.expect("}")
}

func parseMotionHeader(t *tokenizer) (int, float64, error) {
	if err := t.expect("MOTION"); err != nil {
		return 0, 0, err
	}
	if err := t.expect("Frames:"); err != nil {
		return 0, 0, err
	}
	frames, err := t.int()
	if err != nil {
		return 0, 0, err
	}
	if frames <= 0 {
		return 0, 0, fmt.Errorf("%w: clip has no frames", ErrMalformed)
	}
	if err := t.expect("Frame"); err != nil {
		return 0, 0, err
	}
	if err := t.expect("Time:"); err != nil {
		return 0, 0, err
	}
	frameTime, err := t.float()
	if err != nil {
		return 0, 0, err
	}
	if frameTime <= 0 {
		return 0, 0, fmt.Errorf("%w: frame time must be positive, got %v", ErrMalformed, frameTime)
	}
	return frames, frameTime, nil
}
