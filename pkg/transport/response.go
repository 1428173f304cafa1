package transport

import (
	"github.com/miekg/dns"

	"github.com/cuemby/resolvd/pkg/types"
)

// parseResponse maps one DNS response onto a Result. Answer order is
// preserved; duplicates are kept as returned.
func parseResponse(resp *dns.Msg, qtype uint16) Result {
	switch resp.Rcode {
	case dns.RcodeSuccess:
		// fall through to answer extraction
	case dns.RcodeNameError:
		return Result{Status: types.StatusNXDomain, Authoritative: resp.Authoritative}
	case dns.RcodeServerFailure, dns.RcodeRefused, dns.RcodeNotImplemented:
		return Result{Status: types.StatusServFail}
	case dns.RcodeFormatError:
		return Result{Status: types.StatusMalformed}
	default:
		return Result{Status: types.StatusServFail}
	}

	res := Result{Authoritative: resp.Authoritative}
	for _, rr := range resp.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				res.Addresses = append(res.Addresses, record.A.String())
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				res.Addresses = append(res.Addresses, record.AAAA.String())
			}
		}
	}

	if len(res.Addresses) == 0 {
		res.Status = types.StatusNoData
		return res
	}
	res.Status = types.StatusSuccess
	return res
}

// mergeFamilies combines the A and AAAA results of one lookup: v4
// addresses first, then v6, each preserving response order. When both
// families failed, a retryable status wins so the engine's retry policy
// gets a chance; otherwise the result is NXDOMAIN only when both families
// returned NXDOMAIN, and NODATA in every other case.
func mergeFamilies(v4, v6 Result) Result {
	merged := Result{
		Addresses:     append(append([]string(nil), v4.Addresses...), v6.Addresses...),
		Authoritative: v4.Authoritative || v6.Authoritative,
	}

	switch {
	case len(merged.Addresses) > 0:
		merged.Status = types.StatusSuccess
	case v4.Status.Retryable():
		merged.Status = v4.Status
	case v6.Status.Retryable():
		merged.Status = v6.Status
	case v4.Status == types.StatusNXDomain && v6.Status == types.StatusNXDomain:
		merged.Status = types.StatusNXDomain
	case v4.Status == types.StatusNotInitialized:
		merged.Status = types.StatusNotInitialized
	default:
		merged.Status = types.StatusNoData
	}

	switch {
	case len(v4.Addresses) > 0 && len(v6.Addresses) > 0:
		merged.RecordType = types.RecordTypeMixed
	case len(v6.Addresses) > 0:
		merged.RecordType = types.RecordTypeAAAA
	default:
		merged.RecordType = types.RecordTypeA
	}

	return merged
}
