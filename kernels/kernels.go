// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernels holds the APSP compute kernels: a Floyd–Warshall
// relaxation step and two min-plus (tropical) matrix product kernels, one
// naive and one tiled through workgroup shared memory.
//
// Each kernel ships in two forms with the same contract. The WGSL text is
// compiled by shader backends; the host form runs on the CPU device.
// Workgroup extents are substituted into the WGSL at build time, so the
// same source serves every workgroup shape.
package kernels

import (
	"bytes"
	"embed"
	"encoding/binary"
	"fmt"
	"math"
	"text/template"

	"github.com/LynnColeArt/apsp/gpu"
)

//go:embed *.wgsl
var sources embed.FS

// ParamsSize is the byte size of the Params uniform.
const ParamsSize = 16

// Params is the uniform passed to every dispatch. N and Stride are fixed
// for a run; K is the Floyd–Warshall pivot and is zero for the min-plus
// kernels. Inf carries the bit pattern of +Inf so kernels never need an
// infinite constant.
type Params struct {
	N      uint32
	Stride uint32
	K      uint32
	Inf    uint32
}

// NewParams returns the params of an n×n problem laid out with stride.
func NewParams(n, stride, k int) Params {
	return Params{
		N:      uint32(n),
		Stride: uint32(stride),
		K:      uint32(k),
		Inf:    math.Float32bits(float32(math.Inf(1))),
	}
}

// Bytes encodes p as the little-endian uniform layout.
func (p Params) Bytes() []byte {
	b := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(b[0:], p.N)
	binary.LittleEndian.PutUint32(b[4:], p.Stride)
	binary.LittleEndian.PutUint32(b[8:], p.K)
	binary.LittleEndian.PutUint32(b[12:], p.Inf)
	return b
}

// DecodeParams reads Params back from a host-addressable uniform buffer.
func DecodeParams(buf gpu.Buffer) Params {
	hm := buf.(gpu.HostMemory)
	b := hm.Bytes()
	return Params{
		N:      binary.LittleEndian.Uint32(b[0:]),
		Stride: binary.LittleEndian.Uint32(b[4:]),
		K:      binary.LittleEndian.Uint32(b[8:]),
		Inf:    binary.LittleEndian.Uint32(b[12:]),
	}
}

func render(file string, wg gpu.Dim3) (string, error) {
	raw, err := sources.ReadFile(file)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(file).Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("kernels: parse %s: %w", file, err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, wg); err != nil {
		return "", fmt.Errorf("kernels: render %s: %w", file, err)
	}
	return out.String(), nil
}

func checkShape(op string, x, y int) error {
	if x <= 0 || y <= 0 {
		return gpu.NewInvalidArgError(op, fmt.Sprintf("workgroup %dx%d must be positive", x, y))
	}
	return nil
}

// FloydWarshall returns the in-place relaxation program for pivot
// Params.K. Bindings: distance matrix (read-write), params.
func FloydWarshall(x, y int) (gpu.Program, error) {
	if err := checkShape("FloydWarshall", x, y); err != nil {
		return gpu.Program{}, err
	}
	wg := gpu.Dim3{X: x, Y: y, Z: 1}
	src, err := render("floyd_warshall.wgsl", wg)
	if err != nil {
		return gpu.Program{}, err
	}
	return gpu.Program{
		Name:      fmt.Sprintf("floyd_warshall_%dx%d", x, y),
		Entry:     "floyd_warshall",
		Source:    src,
		Workgroup: wg,
		Bindings:  []gpu.BindingType{gpu.BindingStorage, gpu.BindingUniform},
		Host:      relax,
	}, nil
}

// TropicalNaive returns the min-plus product program in which every
// invocation scans its whole contraction range in global memory.
// Bindings: operand (read-only), product (write), params.
func TropicalNaive(x, y int) (gpu.Program, error) {
	if err := checkShape("TropicalNaive", x, y); err != nil {
		return gpu.Program{}, err
	}
	wg := gpu.Dim3{X: x, Y: y, Z: 1}
	src, err := render("tropical_matmul.wgsl", wg)
	if err != nil {
		return gpu.Program{}, err
	}
	return gpu.Program{
		Name:      fmt.Sprintf("tropical_matmul_%dx%d", x, y),
		Entry:     "tropical_matmul",
		Source:    src,
		Workgroup: wg,
		Bindings:  []gpu.BindingType{gpu.BindingReadOnlyStorage, gpu.BindingStorage, gpu.BindingUniform},
		Host:      minPlusNaive,
	}, nil
}

// TropicalBlocked returns the tiled min-plus product program. Workgroups
// are tile×tile and stage tile×tile blocks of both operands in shared
// memory. Bindings as for TropicalNaive.
func TropicalBlocked(tile int) (gpu.Program, error) {
	if err := checkShape("TropicalBlocked", tile, tile); err != nil {
		return gpu.Program{}, err
	}
	wg := gpu.Dim3{X: tile, Y: tile, Z: 1}
	src, err := render("tropical_matmul_block.wgsl", wg)
	if err != nil {
		return gpu.Program{}, err
	}
	return gpu.Program{
		Name:      fmt.Sprintf("tropical_matmul_block_%dx%d", tile, tile),
		Entry:     "tropical_matmul",
		Source:    src,
		Workgroup: wg,
		Bindings:  []gpu.BindingType{gpu.BindingReadOnlyStorage, gpu.BindingStorage, gpu.BindingUniform},
		Host:      minPlusBlocked(tile),
	}, nil
}
