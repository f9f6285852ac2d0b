// Package region resolves which storage cluster serves a bucket and keeps
// track of endpoint health.
//
// A Region is the set of service endpoints for one storage cluster. The
// Resolver discovers regions by asking the configuration service which
// cluster hosts a bucket, caches the answer, and hands out healthy upload
// endpoints. The HealthTable remembers endpoints that recently failed so the
// whole process steers around them, and can persist that knowledge across
// restarts.
package region

// ServiceCategory identifies one class of endpoint within a region.
type ServiceCategory string

// Service categories exposed by a region.
const (
	ServiceUp  ServiceCategory = "up"  // upload entry points
	ServiceIo  ServiceCategory = "io"  // source download
	ServiceRs  ServiceCategory = "rs"  // object metadata
	ServiceRsf ServiceCategory = "rsf" // bucket listing
	ServiceAPI ServiceCategory = "api" // management API
)

// Region holds the endpoint URLs of one storage cluster, split by service
// category and scheme. URL slices are ordered by preference: accelerated
// endpoints first, then source endpoints, then their backups.
type Region struct {
	// ID names the region when it is statically configured. Regions
	// discovered through a query carry an empty ID.
	ID string

	UpHTTPURLs   []string
	UpHTTPSURLs  []string
	IoHTTPURLs   []string
	IoHTTPSURLs  []string
	RsHTTPURLs   []string
	RsHTTPSURLs  []string
	RsfHTTPURLs  []string
	RsfHTTPSURLs []string
	APIHTTPURLs  []string
	APIHTTPSURLs []string
}

// URLs returns the endpoint URLs for a service category, preferring the
// HTTPS set when useHTTPS is set.
func (r *Region) URLs(category ServiceCategory, useHTTPS bool) []string {
	switch category {
	case ServiceUp:
		if useHTTPS {
			return r.UpHTTPSURLs
		}
		return r.UpHTTPURLs
	case ServiceIo:
		if useHTTPS {
			return r.IoHTTPSURLs
		}
		return r.IoHTTPURLs
	case ServiceRs:
		if useHTTPS {
			return r.RsHTTPSURLs
		}
		return r.RsHTTPURLs
	case ServiceRsf:
		if useHTTPS {
			return r.RsfHTTPSURLs
		}
		return r.RsfHTTPURLs
	case ServiceAPI:
		if useHTTPS {
			return r.APIHTTPSURLs
		}
		return r.APIHTTPURLs
	}
	return nil
}

// queryResponse is the configuration service's answer to a bucket query:
// one hosts entry per region serving the bucket, primary zone first.
type queryResponse struct {
	Hosts []queryResult `json:"hosts"`
}

func (q queryResponse) toRegions() []*Region {
	regions := make([]*Region, 0, len(q.Hosts))
	for _, host := range q.Hosts {
		regions = append(regions, host.toRegion())
	}
	return regions
}

// queryResult is one region's endpoint listing within a query answer.
type queryResult struct {
	Up struct {
		Acc    queryDomains `json:"acc"`
		Src    queryDomains `json:"src"`
		OldAcc queryDomains `json:"old_acc"`
		OldSrc queryDomains `json:"old_src"`
	} `json:"up"`
	Io struct {
		Src queryDomains `json:"src"`
	} `json:"io"`
}

type queryDomains struct {
	Main   []string `json:"main"`
	Backup []string `json:"backup"`
}

func (d queryDomains) hosts() []string {
	return append(append([]string{}, d.Main...), d.Backup...)
}

// toRegion assembles endpoint URLs from the bare hostnames in a query
// result. The old_acc and old_src hosts only join the HTTPS set; they exist
// for clients that cannot send SNI and have no plain-HTTP counterpart worth
// preferring.
func (q queryResult) toRegion() *Region {
	httpHosts := append(q.Up.Acc.hosts(), q.Up.Src.hosts()...)
	httpsHosts := append(append(q.Up.Acc.hosts(), q.Up.Src.hosts()...),
		append(q.Up.OldAcc.hosts(), q.Up.OldSrc.hosts()...)...)
	ioHosts := q.Io.Src.hosts()

	return &Region{
		UpHTTPURLs:  prefixScheme("http", httpHosts),
		UpHTTPSURLs: prefixScheme("https", httpsHosts),
		IoHTTPURLs:  prefixScheme("http", ioHosts),
		IoHTTPSURLs: prefixScheme("https", ioHosts),
	}
}

func prefixScheme(scheme string, hosts []string) []string {
	urls := make([]string, 0, len(hosts))
	for _, host := range hosts {
		urls = append(urls, scheme+"://"+host)
	}
	return urls
}
