// {{{ Copyright (c) Paul R. Tagliamonte <paultag@gmail.com> 2020-2021
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

package ring

import (
	"strings"

	"github.com/google/uuid"
)

const (
	shmNamePrefix = "/ring-"
	shmNameChars  = 12
)

const alnum = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randomShmName generates a name of the form "/ring-XXXXXXXXXXXX",
// with 12 alphanumeric characters of randomness. The randomness comes
// from a v4 UUID's 16 bytes rather than a hand-rolled PRNG loop; each
// byte is reduced mod len(alnum) into the output alphabet.
func randomShmName() string {
	id := uuid.New()
	var b strings.Builder
	b.Grow(len(shmNamePrefix) + shmNameChars)
	b.WriteString(shmNamePrefix)
	for i := 0; i < shmNameChars; i++ {
		b.WriteByte(alnum[int(id[i])%len(alnum)])
	}
	return b.String()
}

// vim: foldmethod=marker
