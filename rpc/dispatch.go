// Copyright (c) 2024-2026 The ESDM Authors
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package rpc

import "context"

// unprivMethods and privMethods fix which methods each socket serves (spec
// §4.H's two independent services). A request for a method not in the set
// matching the connection it arrived on is rejected rather than silently
// routed to the other service.
var unprivMethods = map[string]bool{
	MethodStatus:             true,
	MethodGetRandomBytes:     true,
	MethodGetRandomBytesFull: true,
	MethodGetRandomBytesMin:  true,
	MethodGetEntLvl:          true,
	MethodGetMinReseedSecs:   true,
	MethodWriteData:          true,
	MethodRndGetEntCnt:       true,
}

var privMethods = map[string]bool{
	MethodRndAddToEntCnt: true,
	MethodRndAddEntropy:  true,
	MethodRndClearPool:   true,
	MethodRndReseedCRNG:  true,
}

// Dispatch executes req against c and returns the paired Response. ctx
// governs the blocking get_random_bytes_full/_min waits; privileged
// indicates which socket the request arrived on (spec §4.H's two
// independent services).
func (c *Core) Dispatch(ctx context.Context, privileged bool, req *Request) *Response {
	if !unprivMethods[req.Method] && !privMethods[req.Method] {
		return errResponse(req, codeFor(ErrUnknownMethod))
	}

	allowed := unprivMethods[req.Method]
	if privileged {
		allowed = allowed || privMethods[req.Method]
	}
	if !allowed {
		return errResponse(req, codeFor(ErrPermission))
	}

	switch req.Method {
	case MethodStatus:
		return newResponse(req, 0, []byte(c.Status()))

	case MethodGetRandomBytes:
		data, err := c.GetRandomBytes(req.NumBytes)
		return fromResult(req, data, err)

	case MethodGetRandomBytesFull:
		data, err := c.GetRandomBytesFull(ctx, req.NumBytes, req.Nonblock)
		return fromResult(req, data, err)

	case MethodGetRandomBytesMin:
		data, err := c.GetRandomBytesMin(ctx, req.NumBytes)
		return fromResult(req, data, err)

	case MethodGetEntLvl:
		return newResponse(req, int64(c.GetEntLvl()), nil)

	case MethodGetMinReseedSecs:
		return newResponse(req, int64(c.GetMinReseedSecs()), nil)

	case MethodWriteData:
		n, err := c.WriteData(req.Data)
		return fromCount(req, n, err)

	case MethodRndGetEntCnt:
		return newResponse(req, int64(c.RndGetEntCnt()), nil)

	case MethodRndAddToEntCnt:
		err := c.RndAddToEntCnt(req.EntropyBits)
		return fromCount(req, 0, err)

	case MethodRndAddEntropy:
		n, err := c.RndAddEntropy(req.Data, req.EntropyBits)
		return fromCount(req, n, err)

	case MethodRndClearPool:
		c.RndClearPool()
		return newResponse(req, 0, nil)

	case MethodRndReseedCRNG:
		c.RndReseedCRNG()
		return newResponse(req, 0, nil)

	default:
		return errResponse(req, codeFor(ErrUnknownMethod))
	}
}

func fromResult(req *Request, data []byte, err error) *Response {
	if err != nil {
		return errResponse(req, codeFor(err))
	}
	return newResponse(req, int64(len(data)), data)
}

func fromCount(req *Request, n int, err error) *Response {
	if err != nil {
		return errResponse(req, codeFor(err))
	}
	return newResponse(req, int64(n), nil)
}
