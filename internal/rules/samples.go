package rules

// Sample chains served when the process cannot read the live firewall.
const (
	SampleRulesIPv4 = `
-P INPUT DROP
-A INPUT -i lo -j ACCEPT
-A INPUT -i enp1s0 -m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT
-A INPUT -i enp1s0 -p icmp -m icmp --icmp-type 8 -m comment --comment Public_ECHO -j ACCEPT
-A INPUT -i enp1s0 -p tcp -m state --state NEW -m tcp --dport 22 -m comment --comment Public_SSH -j ACCEPT
-A INPUT -i enp1s0 -p tcp -m state --state NEW -m tcp --dport 80 -m comment --comment Public_HTTP -j LOG_DROP2
-A INPUT -i enp1s0 -p tcp -m state --state NEW -m tcp --dport 443 -m comment --comment Public_HTTPS -j LOG_DROP2
-A INPUT -d 224.0.0.1/32 -i enp1s0 -j LOG_DROP3
-A INPUT -i enp1s0 -p udp -m udp --dport 137 -j LOG_DROP2
-A INPUT -i enp1s0 -p udp -m udp --dport 138 -j LOG_DROP2
-A INPUT -j LOG_DROP2
`

	SampleRulesIPv6 = `
-P INPUT DROP
-A INPUT -i lo -j ACCEPT
-A INPUT -i enp1s0 -m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT
-A INPUT -i enp1s0 -p ipv6-icmp -m comment --comment Public_ICMP -j LOG_DROP2
-A INPUT -s fe80::/10 -i enp1s0 -p udp -m state --state NEW -m udp --dport 546 -m comment --comment DHCP_546 -j ACCEPT
-A INPUT -i enp1s0 -p tcp -m state --state NEW -m tcp --dport 22 -m comment --comment Public_SSH -j ACCEPT
-A INPUT -i enp1s0 -p tcp -m state --state NEW -m tcp --dport 80 -m comment --comment Public_HTTP -j LOG_DROP2
-A INPUT -i enp1s0 -p tcp -m state --state NEW -m tcp --dport 443 -m comment --comment Public_HTTPS -j LOG_DROP2
-A INPUT -j LOG_DROP2
`
)

// SampleRules returns the sample chain for v.
func SampleRules(v IPVersion) string {
	if v == IPv6 {
		return SampleRulesIPv6
	}
	return SampleRulesIPv4
}
