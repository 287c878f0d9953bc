package emulator

const lsLong = `total 16
drwxr-xr-x 2 root root 4096 Jun 10 09:12 backup
drwxr-xr-x 2 root root 4096 May 30 17:45 scripts`

const lsLongAll = `total 40
drwx------  6 root root 4096 Jun 14 10:02 .
drwxr-xr-x 19 root root 4096 May 28 16:40 ..
-rw-------  1 root root 1843 Jun 14 09:58 .bash_history
-rw-r--r--  1 root root 3106 Dec  5  2019 .bashrc
drwx------  2 root root 4096 May 28 16:52 .cache
-rw-r--r--  1 root root  161 Dec  5  2019 .profile
drwx------  2 root root 4096 May 28 16:55 .ssh
drwxr-xr-x  2 root root 4096 Jun 10 09:12 backup
drwxr-xr-x  2 root root 4096 May 30 17:45 scripts`

const psAuxOut = `USER         PID %CPU %MEM    VSZ   RSS TTY      STAT START   TIME COMMAND
root           1  0.0  0.5 168012 11264 ?        Ss   Jun10   0:09 /sbin/init
root         412  0.0  0.3  48164  7936 ?        S<s  Jun10   0:02 /lib/systemd/systemd-journald
root         689  0.0  0.2  12176  5632 ?        Ss   Jun10   0:00 /usr/sbin/sshd -D
root         702  0.0  0.1   8540  2944 ?        Ss   Jun10   0:01 /usr/sbin/cron -f
mysql        733  0.3  9.8 1784152 198740 ?      Ssl  Jun10  21:42 /usr/sbin/mysqld
www-data     810  0.0  0.4  55300  8704 ?        S    Jun10   0:00 nginx: worker process
root        1342  0.0  0.2  10048  5120 pts/0    Ss   10:02   0:00 -bash
root        1377  0.0  0.1  10616  3328 pts/0    R+   10:04   0:00 ps aux`

const netstatOut = `Active Internet connections (only servers)
Proto Recv-Q Send-Q Local Address           Foreign Address         State
tcp        0      0 0.0.0.0:22              0.0.0.0:*               LISTEN
tcp        0      0 0.0.0.0:80              0.0.0.0:*               LISTEN
tcp        0      0 127.0.0.1:3306          0.0.0.0:*               LISTEN
tcp6       0      0 :::22                   :::*                    LISTEN`

const ssOut = `Netid State  Recv-Q Send-Q Local Address:Port  Peer Address:Port
tcp   LISTEN 0      128          0.0.0.0:22         0.0.0.0:*
tcp   LISTEN 0      511          0.0.0.0:80         0.0.0.0:*
tcp   LISTEN 0      80         127.0.0.1:3306       0.0.0.0:*`

const ifconfigOut = `eth0: flags=4163<UP,BROADCAST,RUNNING,MULTICAST>  mtu 1500
        inet 10.0.2.15  netmask 255.255.255.0  broadcast 10.0.2.255
        ether 08:00:27:4e:66:a1  txqueuelen 1000  (Ethernet)
        RX packets 184523  bytes 201893412 (201.8 MB)
        TX packets 93211  bytes 8123345 (8.1 MB)

lo: flags=73<UP,LOOPBACK,RUNNING>  mtu 65536
        inet 127.0.0.1  netmask 255.0.0.0
        loop  txqueuelen 1000  (Local Loopback)`

const ipAddrOut = `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN group default qlen 1000
    inet 127.0.0.1/8 scope host lo
2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc fq_codel state UP group default qlen 1000
    link/ether 08:00:27:4e:66:a1 brd ff:ff:ff:ff:ff:ff
    inet 10.0.2.15/24 brd 10.0.2.255 scope global dynamic eth0`

const dfOut = `Filesystem     1K-blocks    Used Available Use% Mounted on
udev             1001712       0   1001712   0% /dev
tmpfs             204796    1012    203784   1% /run
/dev/sda1       40593612 9214788  31362440  23% /
tmpfs            1023972       0   1023972   0% /dev/shm`

const freeOut = `              total        used        free      shared  buff/cache   available
Mem:        2047944      612304      386140        1092     1049500     1268312
Swap:       2097148           0     2097148`

const historyOut = `    1  apt update
    2  apt upgrade -y
    3  systemctl status mysql
    4  mysql -u root -p
    5  cd /root/backup
    6  ls -la
    7  vi /etc/nginx/sites-available/default
    8  systemctl restart nginx`

const envOut = `SHELL=/bin/bash
PWD=/root
LOGNAME=root
HOME=/root
LANG=C.UTF-8
USER=root
SHLVL=1
PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin
_=/usr/bin/env`

var files = map[string]string{
	"/etc/passwd": `root:x:0:0:root:/root:/bin/bash
daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin
bin:x:2:2:bin:/bin:/usr/sbin/nologin
sys:x:3:3:sys:/dev:/usr/sbin/nologin
www-data:x:33:33:www-data:/var/www:/usr/sbin/nologin
mysql:x:111:116:MySQL Server,,,:/nonexistent:/bin/false
sshd:x:112:65534::/run/sshd:/usr/sbin/nologin
ubuntu:x:1000:1000:Ubuntu:/home/ubuntu:/bin/bash`,
	"/etc/hostname": Hostname,
	"/etc/issue":    `Ubuntu 20.04.3 LTS \n \l`,
	"/etc/os-release": `NAME="Ubuntu"
VERSION="20.04.3 LTS (Focal Fossa)"
ID=ubuntu
ID_LIKE=debian
PRETTY_NAME="Ubuntu 20.04.3 LTS"
VERSION_ID="20.04"`,
	"/proc/version": "Linux version " + Kernel + " (buildd@lcy01-amd64-023) (gcc version 9.3.0 (Ubuntu 9.3.0-17ubuntu1~20.04)) #84-Ubuntu SMP Fri May 28 16:28:37 UTC 2021",
	"/proc/cpuinfo": `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU E5-2676 v3 @ 2.40GHz
cpu MHz		: 2400.042
cache size	: 30720 KB
cpu cores	: 1`,
	"/root/.bash_history": historyOut,
}
