// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/juju/errors"
)

// maxLength bounds every length prefix so that a corrupted artifact fails instead of allocating gigabytes.
const maxLength = 1 << 28

func readLength(r io.Reader) (int, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return 0, errors.Trace(err)
	}
	if length < 0 || length > maxLength {
		return 0, errors.NotValidf("length %d", length)
	}
	return int(length), nil
}

func writeLength(w io.Writer, n int) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, int32(n)))
}

// WriteFloats writes a length-prefixed vector to byte stream.
func WriteFloats(w io.Writer, v []float64) error {
	if err := writeLength(w, len(v)); err != nil {
		return err
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadFloats reads a length-prefixed vector from byte stream.
func ReadFloats(r io.Reader) ([]float64, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	v := make([]float64, n)
	if err = binary.Read(r, binary.LittleEndian, v); err != nil {
		return nil, errors.Trace(err)
	}
	return v, nil
}

// WriteMatrix writes matrix to byte stream. Rows may not be ragged.
func WriteMatrix(w io.Writer, m [][]float64) error {
	cols := 0
	if len(m) > 0 {
		cols = len(m[0])
	}
	if err := writeLength(w, len(m)); err != nil {
		return err
	}
	if err := writeLength(w, cols); err != nil {
		return err
	}
	for i := range m {
		if len(m[i]) != cols {
			return errors.NotValidf("row %d has %d columns, expected %d", i, len(m[i]), cols)
		}
		if err := binary.Write(w, binary.LittleEndian, m[i]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadMatrix reads matrix from byte stream.
func ReadMatrix(r io.Reader) ([][]float64, error) {
	rows, err := readLength(r)
	if err != nil {
		return nil, err
	}
	cols, err := readLength(r)
	if err != nil {
		return nil, err
	}
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		if err = binary.Read(r, binary.LittleEndian, m[i]); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return m, nil
}

// WriteInt64s writes a length-prefixed int64 array to byte stream.
func WriteInt64s(w io.Writer, v []int64) error {
	if err := writeLength(w, len(v)); err != nil {
		return err
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadInt64s reads a length-prefixed int64 array from byte stream.
func ReadInt64s(r io.Reader) ([]int64, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	v := make([]int64, n)
	if err = binary.Read(r, binary.LittleEndian, v); err != nil {
		return nil, errors.Trace(err)
	}
	return v, nil
}

// WriteInts writes a length-prefixed int array to byte stream as 32-bit integers.
func WriteInts(w io.Writer, v []int) error {
	buf := make([]int32, len(v))
	for i := range v {
		buf[i] = int32(v[i])
	}
	if err := writeLength(w, len(buf)); err != nil {
		return err
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, buf))
}

// ReadInts reads a length-prefixed int array from byte stream.
func ReadInts(r io.Reader) ([]int, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	buf := make([]int32, n)
	if err = binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, errors.Trace(err)
	}
	v := make([]int, n)
	for i := range buf {
		v[i] = int(buf[i])
	}
	return v, nil
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteStrings writes a length-prefixed string array to byte stream.
func WriteStrings(w io.Writer, v []string) error {
	if err := writeLength(w, len(v)); err != nil {
		return err
	}
	for _, s := range v {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// ReadStrings reads a length-prefixed string array from byte stream.
func ReadStrings(r io.Reader) ([]string, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	v := make([]string, n)
	for i := range v {
		if v[i], err = ReadString(r); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	if err := writeLength(w, len(s)); err != nil {
		return err
	}
	n, err := w.Write(s)
	if err != nil {
		return errors.Trace(err)
	} else if n != len(s) {
		return errors.New("fail to write bytes")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v interface{}) error {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	if err := encoder.Encode(v); err != nil {
		return errors.Trace(err)
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v interface{}) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	return errors.Trace(decoder.Decode(v))
}
